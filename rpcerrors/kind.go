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

// Package rpcerrors defines the transport-independent error taxonomy shared
// by every adapter, the client engine, and the server engine.
package rpcerrors

// Kind is one of the five client-visible error categories. It is the
// transport-independent half of every error this module returns; the
// transport-specific cause is always available through errors.Unwrap.
type Kind int

const (
	// KindOpen means a transport refused to establish a new substream.
	KindOpen Kind = iota
	// KindSend means a write failed before or during the head/update frames.
	KindSend
	// KindRecv means a read failed mid-stream.
	KindRecv
	// KindEarlyClose means the peer closed the substream without delivering
	// the frame the caller required (e.g. no response before end-of-stream).
	KindEarlyClose
	// KindDowncast means an envelope variant did not belong to the
	// sub-set declared for the message or pattern being driven.
	KindDowncast
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindSend:
		return "send"
	case KindRecv:
		return "recv"
	case KindEarlyClose:
		return "early-close"
	case KindDowncast:
		return "downcast"
	default:
		return "unknown"
	}
}

// Recoverable reports whether a caller can reasonably retry the same logical
// call after seeing this kind of error. Per spec.md §7, only Open is
// generally recoverable (by trying another peer); the rest are terminal for
// the call that produced them.
func (k Kind) Recoverable() bool {
	return k == KindOpen
}
