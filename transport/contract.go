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

// Package transport defines the abstract bidirectional-substream contract
// that every concrete backend (transport/inmem, transport/framed,
// transport/quicmux, transport/httphijack) and composition
// (transport/combined) implements.
//
// Errors crossing this contract always use the three kinds in
// go.uber.org/substream/rpcerrors: OpenError for a failed Connector.Open or
// Listener.Accept, SendError for a failed SendHalf.Send, and RecvError for a
// failed RecvHalf.Recv. Conforming implementations never report a transport
// failure via panic or a side channel.
package transport

import "context"

// Addr identifies one of a Listener's local bind points. Listener.LocalAddr
// returns an ordered slice. The inmem, framed and httphijack listeners
// always return exactly one address; the quicmux listener returns nil when
// its Endpoint cannot supply a connection; transport/combined concatenates
// the slices of its backends, so it returns an empty slice when both are
// nil.
type Addr interface {
	Network() string
	String() string
}

// SendHalf is a sink of whole envelopes with cooperative readiness: Send may
// suspend the caller until the substream has capacity, and returns once the
// envelope has been accepted by the transport (not necessarily observed by
// the peer). Close signals an orderly half-close; per spec.md §3, closing
// the send half is how a caller commits a ClientStreaming/BidiStreaming
// update sequence, and how a dropped call cancels the substream.
type SendHalf[T any] interface {
	Send(ctx context.Context, v T) error
	Close() error
}

// RecvHalf is a lazy, single-consumer sequence of whole envelopes. Recv
// blocks until the next envelope is available, returns io.EOF on orderly
// end-of-stream, or a RecvError on transport failure.
type RecvHalf[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// Connector is the client-side handle that produces new, independent
// substreams by opening. Out is the envelope type written on the send half
// of a newly opened substream (normally a service's request envelope); In
// is the envelope type read from its recv half (normally the response
// envelope). Connectors are safe for concurrent use: Open is the only
// serializing action, and it is serialized by the transport, not the
// caller.
type Connector[Out, In any] interface {
	Open(ctx context.Context) (SendHalf[Out], RecvHalf[In], error)
}

// Listener is the server-side handle that produces new substreams by
// accepting, in arrival order across all of its local addresses. Because
// the server's roles are the client's reversed, Out/In here are swapped
// relative to a Connector serving the same envelope pair: a Listener
// accepting substreams opened by a Connector[Req, Res] is a
// Listener[Res, Req].
type Listener[Out, In any] interface {
	Accept(ctx context.Context) (SendHalf[Out], RecvHalf[In], error)
	LocalAddr() []Addr
}
