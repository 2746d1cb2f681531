// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package framed

import "io"

// PrefixedReader delivers a pre-read chunk before resuming reads from the
// underlying reader. It exists so a caller that must inspect the start of a
// byte stream (a handshake byte, a sniffed frame header) can do so without
// losing those bytes for the codec that reads the stream afterwards.
//
// An original addition on the Go side, not a carryover from the distilled
// spec's Rust original (whose src/transport/util.rs contains only codec
// wrappers, nothing resembling this); exported so transport/httphijack can
// re-deliver bytes it buffers while completing the upgrade handshake.
type PrefixedReader struct {
	prefix []byte
	r      io.Reader
}

// NewPrefixedReader builds a PrefixedReader that yields prefix before r.
func NewPrefixedReader(prefix []byte, r io.Reader) *PrefixedReader {
	return &PrefixedReader{prefix: prefix, r: r}
}

func (p *PrefixedReader) Read(buf []byte) (int, error) {
	if len(p.prefix) > 0 {
		n := copy(buf, p.prefix)
		p.prefix = p.prefix[n:]
		return n, nil
	}
	return p.r.Read(buf)
}
