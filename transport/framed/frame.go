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

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes one [u32 big-endian length][payload] frame, per
// spec.md §6. It returns an error (never panics) if payload exceeds
// maxFrame; no partial frame is written in that case. Exported so other
// byte-stream-shaped adapters (transport/quicmux, transport/httphijack)
// reuse the same wire framing instead of redefining it.
func WriteFrame(w io.Writer, payload []byte, maxFrame uint32) error {
	if uint32(len(payload)) > maxFrame {
		return fmt.Errorf("framed: payload of %d bytes exceeds max frame length %d", len(payload), maxFrame)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame written by WriteFrame. It returns io.EOF only
// when zero bytes of a new frame have been read (orderly end-of-stream);
// any other read failure, or a length prefix exceeding maxFrame, is
// reported as a plain error for the caller to wrap.
func ReadFrame(r io.Reader, maxFrame uint32) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("framed: truncated frame header: %w", err)
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > maxFrame {
		return nil, fmt.Errorf("framed: frame of %d bytes exceeds max frame length %d", length, maxFrame)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("framed: truncated frame payload: %w", err)
	}
	return payload, nil
}
