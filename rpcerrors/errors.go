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

package rpcerrors

import "fmt"

// Error is the concrete type behind the open, send, recv, early-close and
// downcast errors that the transports and the client and server engines
// return. It is never constructed directly by users; use the Open, Send,
// Recv, EarlyClose and Downcast constructors or the Is* helpers below.
type Error struct {
	kind  Kind
	cause error
}

// Open wraps cause as a KindOpen error: the transport refused to establish a
// new substream.
func Open(cause error) error { return &Error{kind: KindOpen, cause: cause} }

// Send wraps cause as a KindSend error: a write failed before or during the
// head/update frames.
func Send(cause error) error { return &Error{kind: KindSend, cause: cause} }

// Recv wraps cause as a KindRecv error: a read failed mid-stream.
func Recv(cause error) error { return &Error{kind: KindRecv, cause: cause} }

// EarlyClose reports that the peer closed the substream in an orderly
// fashion before delivering the frame the caller required.
func EarlyClose() error { return &Error{kind: KindEarlyClose} }

// Downcast reports that an envelope variant did not belong to the sub-set
// declared for the message or pattern being driven.
func Downcast() error { return &Error{kind: KindDowncast} }

func (e *Error) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

// Unwrap exposes the transport-specific cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise. Equality of errors produced by this package is by Kind alone,
// per spec.md §6.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !asError(err, &e) {
		return 0, false
	}
	return e.kind, true
}

// IsOpenError reports whether err is a KindOpen error.
func IsOpenError(err error) bool { return kindIs(err, KindOpen) }

// IsSendError reports whether err is a KindSend error.
func IsSendError(err error) bool { return kindIs(err, KindSend) }

// IsRecvError reports whether err is a KindRecv error.
func IsRecvError(err error) bool { return kindIs(err, KindRecv) }

// IsEarlyClose reports whether err is a KindEarlyClose error.
func IsEarlyClose(err error) bool { return kindIs(err, KindEarlyClose) }

// IsDowncastError reports whether err is a KindDowncast error.
func IsDowncastError(err error) bool { return kindIs(err, KindDowncast) }

func kindIs(err error, want Kind) bool {
	k, ok := KindOf(err)
	return ok && k == want
}

// asError walks err's Unwrap chain by hand, without importing "errors",
// and stores the first *Error it finds in target. Only single-error
// Unwrap() error links are followed; errors that unwrap to a slice
// (Unwrap() []error) end the walk.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
