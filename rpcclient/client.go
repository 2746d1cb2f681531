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

// Package rpcclient is the client engine (C6): one value binding a
// transport.Connector to a mapping.Mapper, offering one operation per
// pattern in go.uber.org/substream. Every operation opens its own
// substream, so a Client is reentrant and cheap to share across concurrent
// callers — open is the only serializing action, and the transport
// serializes it, not this package.
package rpcclient

import (
	"context"
	"errors"
	"io"

	"go.uber.org/substream"
	"go.uber.org/substream/mapping"
	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
)

// Client binds a Connector over the outer envelope pair to a Mapper that
// embeds one inner service's envelopes inside it.
type Client[OuterReq, OuterRes, InnerReq, InnerRes any] struct {
	connector transport.Connector[OuterReq, OuterRes]
	mapper    mapping.Mapper[OuterReq, OuterRes, InnerReq, InnerRes]
}

// New builds a Client. Passing mapping.Identity[...]() makes the client
// speak the outer envelope directly, satisfying spec.md's mapper
// composition property (an identity-mapped client behaves exactly like an
// unmapped one).
func New[OuterReq, OuterRes, InnerReq, InnerRes any](
	connector transport.Connector[OuterReq, OuterRes],
	mapper mapping.Mapper[OuterReq, OuterRes, InnerReq, InnerRes],
) *Client[OuterReq, OuterRes, InnerReq, InnerRes] {
	return &Client[OuterReq, OuterRes, InnerReq, InnerRes]{connector: connector, mapper: mapper}
}

// Rpc drives msg under the Rpc pattern: opens a substream, sends the mapped
// head envelope, and waits for exactly one response. The send half is held
// open until the response arrives so the server never observes a premature
// half-close and cancels the call.
func Rpc[OuterReq, OuterRes, InnerReq, InnerRes, M, Resp any](
	ctx context.Context,
	c *Client[OuterReq, OuterRes, InnerReq, InnerRes],
	desc substream.RPCDesc[InnerReq, InnerRes, M, Resp],
	msg M,
) (Resp, error) {
	var zero Resp
	send, recv, err := c.connector.Open(ctx)
	if err != nil {
		return zero, err
	}
	if err := send.Send(ctx, c.mapper.ReqInto(desc.ToRequest(msg))); err != nil {
		_ = send.Close()
		return zero, err
	}
	res, err := recv.Recv(ctx)
	_ = send.Close()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, rpcerrors.EarlyClose()
		}
		return zero, err
	}
	inner, ok := c.mapper.ResTryInto(res)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	resp, ok := desc.FromResponse(inner)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	return resp, nil
}

// ServerStreaming drives msg under the ServerStreaming pattern: one head
// envelope out, a lazy sequence of responses back. The returned
// ResponseStream captures the send half, so the stream's lifetime keeps the
// call (and the server-side handler) alive until Close or the stream is
// exhausted.
func ServerStreaming[OuterReq, OuterRes, InnerReq, InnerRes, M, Resp any](
	ctx context.Context,
	c *Client[OuterReq, OuterRes, InnerReq, InnerRes],
	desc substream.ServerStreamingDesc[InnerReq, InnerRes, M, Resp],
	msg M,
) (*ResponseStream[OuterReq, OuterRes, InnerRes, Resp], error) {
	send, recv, err := c.connector.Open(ctx)
	if err != nil {
		return nil, err
	}
	if err := send.Send(ctx, c.mapper.ReqInto(desc.ToRequest(msg))); err != nil {
		_ = send.Close()
		return nil, err
	}
	return &ResponseStream[OuterReq, OuterRes, InnerRes, Resp]{
		send:     send,
		recv:     recv,
		project:  c.mapper.ResTryInto,
		fromResp: desc.FromResponse,
	}, nil
}

// ClientStreaming drives msg under the ClientStreaming pattern: one head
// envelope out, then 0..N updates through the returned UpdateSink, then the
// single response observed only after the sink is closed (spec.md's update
// commit property).
func ClientStreaming[OuterReq, OuterRes, InnerReq, InnerRes, M, Update, Resp any](
	ctx context.Context,
	c *Client[OuterReq, OuterRes, InnerReq, InnerRes],
	desc substream.ClientStreamingDesc[InnerReq, InnerRes, M, Update, Resp],
	msg M,
) (*UpdateSink[OuterReq, Update], *ResponseFuture[OuterRes, InnerRes, Resp], error) {
	send, recv, err := c.connector.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := send.Send(ctx, c.mapper.ReqInto(desc.ToRequest(msg))); err != nil {
		_ = send.Close()
		return nil, nil, err
	}
	sink := &UpdateSink[OuterReq, Update]{
		send: send,
		toReq: func(u Update) OuterReq {
			return c.mapper.ReqInto(desc.UpdateToRequest(u))
		},
	}
	future := &ResponseFuture[OuterRes, InnerRes, Resp]{
		recv:     recv,
		project:  c.mapper.ResTryInto,
		fromResp: desc.FromResponse,
	}
	return sink, future, nil
}

// Bidi drives msg under the BidiStreaming pattern: one head envelope out,
// independently-ordered updates out through the UpdateSink and responses in
// through the ResponseStream.
func Bidi[OuterReq, OuterRes, InnerReq, InnerRes, M, Update, Resp any](
	ctx context.Context,
	c *Client[OuterReq, OuterRes, InnerReq, InnerRes],
	desc substream.BidiStreamingDesc[InnerReq, InnerRes, M, Update, Resp],
	msg M,
) (*UpdateSink[OuterReq, Update], *ResponseStream[OuterReq, OuterRes, InnerRes, Resp], error) {
	send, recv, err := c.connector.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := send.Send(ctx, c.mapper.ReqInto(desc.ToRequest(msg))); err != nil {
		_ = send.Close()
		return nil, nil, err
	}
	sink := &UpdateSink[OuterReq, Update]{
		send: send,
		toReq: func(u Update) OuterReq {
			return c.mapper.ReqInto(desc.UpdateToRequest(u))
		},
	}
	stream := &ResponseStream[OuterReq, OuterRes, InnerRes, Resp]{
		send:     send,
		recv:     recv,
		project:  c.mapper.ResTryInto,
		fromResp: desc.FromResponse,
	}
	return sink, stream, nil
}

// UpdateSink accepts values convertible into the inner service's request
// envelope and transparently maps them outward before writing. Closing the
// sink commits the update sequence: for ClientStreaming it is what unblocks
// the server's single response; for BidiStreaming it half-closes the
// update direction without affecting the independent response direction.
type UpdateSink[OuterReq, Update any] struct {
	send  transport.SendHalf[OuterReq]
	toReq func(Update) OuterReq
}

// Send writes one update.
func (s *UpdateSink[OuterReq, Update]) Send(ctx context.Context, u Update) error {
	return s.send.Send(ctx, s.toReq(u))
}

// Close commits the update sequence by closing the send half.
func (s *UpdateSink[OuterReq, Update]) Close() error {
	return s.send.Close()
}

// ResponseFuture resolves to the single response of an Rpc-shaped call
// whose send half is a separately-owned UpdateSink (ClientStreaming).
type ResponseFuture[OuterRes, InnerRes, Resp any] struct {
	recv     transport.RecvHalf[OuterRes]
	project  func(OuterRes) (InnerRes, bool)
	fromResp func(InnerRes) (Resp, bool)
}

// Wait blocks for the response, distinguishing an orderly early close (no
// response ever delivered) from a transport-level receive failure.
func (f *ResponseFuture[OuterRes, InnerRes, Resp]) Wait(ctx context.Context) (Resp, error) {
	var zero Resp
	res, err := f.recv.Recv(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, rpcerrors.EarlyClose()
		}
		return zero, err
	}
	inner, ok := f.project(res)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	resp, ok := f.fromResp(inner)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	return resp, nil
}

// ResponseStream is a lazy sequence of responses; it captures the call's
// send half so the stream's lifetime keeps the server-side handler alive.
// Next returns io.EOF once the server closes its send half in the ordinary
// course of ending the stream.
type ResponseStream[OuterReq, OuterRes, InnerRes, Resp any] struct {
	send     transport.SendHalf[OuterReq]
	recv     transport.RecvHalf[OuterRes]
	project  func(OuterRes) (InnerRes, bool)
	fromResp func(InnerRes) (Resp, bool)
}

// Next returns the next response, or io.EOF when the stream is exhausted.
func (s *ResponseStream[OuterReq, OuterRes, InnerRes, Resp]) Next(ctx context.Context) (Resp, error) {
	var zero Resp
	res, err := s.recv.Recv(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, io.EOF
		}
		return zero, err
	}
	inner, ok := s.project(res)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	resp, ok := s.fromResp(inner)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	return resp, nil
}

// Close abandons the stream early, closing the send half so the server
// observes end-of-stream and is expected to unwind (spec.md's cancellation
// property).
func (s *ResponseStream[OuterReq, OuterRes, InnerRes, Resp]) Close() error {
	return s.send.Close()
}
