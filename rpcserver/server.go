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

// Package rpcserver is the server engine (C7): it accepts substreams off one
// transport.Listener, reads the head envelope eagerly, and hands the
// remaining traffic to a pattern-keyed dispatch primitive chosen by the
// caller's handler. Each accepted substream moves through
//
//	AWAIT_HEAD --head--> CHOSEN(P) --drive per P--> CLOSED
//	      |                   |
//	      |                   +-- peer half-close --> CANCELLED
//	      +-- transport error --> FAILED
//
// A transport error on one substream, or a panic inside a handler, never
// affects sibling substreams. A dispatch primitive closes its substream's
// send half and returns the error (a panic becomes a plain error) to its
// own caller; a failure while reading a head envelope closes that
// substream's send half and is returned from Server.Accept.
package rpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
)

// Server binds one Listener. Out/In follow transport.Listener's convention:
// Out is the response envelope written back, In is the request envelope
// read.
type Server[Req, Res any] struct {
	listener transport.Listener[Res, Req]
}

// New builds a Server over listener.
func New[Req, Res any](listener transport.Listener[Res, Req]) *Server[Req, Res] {
	return &Server[Req, Res]{listener: listener}
}

// Accept accepts the next substream and eagerly reads its head envelope,
// per spec.md §4.7 ("the first envelope on the substream is read eagerly
// before handing the channel back"). The caller inspects head's variant
// discriminator to decide which ServerChannel dispatch primitive to drive.
func (s *Server[Req, Res]) Accept(ctx context.Context) (Req, *ServerChannel[Req, Res], error) {
	var zero Req
	send, recv, err := s.listener.Accept(ctx)
	if err != nil {
		return zero, nil, err
	}
	head, err := recv.Recv(ctx)
	if err != nil {
		_ = send.Close()
		if errors.Is(err, io.EOF) {
			return zero, nil, rpcerrors.EarlyClose()
		}
		return zero, nil, err
	}
	return head, &ServerChannel[Req, Res]{send: send, recv: recv}, nil
}

// ServerChannel is the remaining traffic of one accepted substream, after
// its head envelope has been read by Server.Accept. Exactly one of the four
// dispatch primitives below should be driven per channel; driving more than
// one is a programming error left to the caller to avoid, mirroring
// spec.md's "selecting a pattern inconsistent with M's declared P is a
// programming error".
type ServerChannel[Req, Res any] struct {
	send transport.SendHalf[Res]
	recv transport.RecvHalf[Req]
}

// Rpc dispatches head as the Rpc pattern: f computes the single response,
// which is injected into Res and written; the send half is then closed.
func Rpc[Req, Res, State, M, Resp any](
	ctx context.Context,
	ch *ServerChannel[Req, Res],
	inject func(Resp) Res,
	state State,
	msg M,
	f func(State, M) Resp,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			closeErr := ch.send.Close()
			err = multierr.Append(fmt.Errorf("rpcserver: handler panic: %v", r), closeErr)
		}
	}()
	resp := f(state, msg)
	sendErr := ch.send.Send(ctx, inject(resp))
	closeErr := ch.send.Close()
	return multierr.Append(sendErr, closeErr)
}

// ServerStreaming dispatches head as the ServerStreaming pattern: f
// produces its lazy sequence of responses by calling yield for each one, in
// order; the send half is closed once f returns.
func ServerStreaming[Req, Res, State, M, Resp any](
	ctx context.Context,
	ch *ServerChannel[Req, Res],
	inject func(Resp) Res,
	state State,
	msg M,
	f func(ctx context.Context, state State, msg M, yield func(Resp) error) error,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			closeErr := ch.send.Close()
			err = multierr.Append(fmt.Errorf("rpcserver: handler panic: %v", r), closeErr)
		}
	}()
	err = f(ctx, state, msg, func(r Resp) error {
		return ch.send.Send(ctx, inject(r))
	})
	closeErr := ch.send.Close()
	return multierr.Append(err, closeErr)
}

// UpdateStream downcasts incoming Req envelopes into M's declared Update
// type. An undowncastable envelope terminates the stream with a downcast
// error; the handler decides whether to still produce a response.
type UpdateStream[Req, Update any] struct {
	recv      transport.RecvHalf[Req]
	tryUpdate func(Req) (Update, bool)
}

// Next returns the next update, io.EOF once the client half-closes, or a
// downcast error if an envelope does not belong to the expected update set.
func (u *UpdateStream[Req, Update]) Next(ctx context.Context) (Update, error) {
	var zero Update
	v, err := u.recv.Recv(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return zero, io.EOF
		}
		return zero, err
	}
	upd, ok := u.tryUpdate(v)
	if !ok {
		return zero, rpcerrors.Downcast()
	}
	return upd, nil
}

// ClientStreaming dispatches head as the ClientStreaming pattern: f
// consumes the UpdateStream (the client's commit is observed as the stream
// ending) and returns the single response.
func ClientStreaming[Req, Res, State, M, Update, Resp any](
	ctx context.Context,
	ch *ServerChannel[Req, Res],
	inject func(Resp) Res,
	tryUpdate func(Req) (Update, bool),
	state State,
	msg M,
	f func(ctx context.Context, state State, msg M, updates *UpdateStream[Req, Update]) Resp,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			closeErr := ch.send.Close()
			err = multierr.Append(fmt.Errorf("rpcserver: handler panic: %v", r), closeErr)
		}
	}()
	updates := &UpdateStream[Req, Update]{recv: ch.recv, tryUpdate: tryUpdate}
	resp := f(ctx, state, msg, updates)
	sendErr := ch.send.Send(ctx, inject(resp))
	closeErr := ch.send.Close()
	return multierr.Append(sendErr, closeErr)
}

// Bidi dispatches head as the BidiStreaming pattern: f consumes the
// UpdateStream and produces its lazy sequence of responses via yield,
// independently ordered from the updates it reads.
func Bidi[Req, Res, State, M, Update, Resp any](
	ctx context.Context,
	ch *ServerChannel[Req, Res],
	inject func(Resp) Res,
	tryUpdate func(Req) (Update, bool),
	state State,
	msg M,
	f func(ctx context.Context, state State, msg M, updates *UpdateStream[Req, Update], yield func(Resp) error) error,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			closeErr := ch.send.Close()
			err = multierr.Append(fmt.Errorf("rpcserver: handler panic: %v", r), closeErr)
		}
	}()
	updates := &UpdateStream[Req, Update]{recv: ch.recv, tryUpdate: tryUpdate}
	err = f(ctx, state, msg, updates, func(r Resp) error {
		return ch.send.Send(ctx, inject(r))
	})
	closeErr := ch.send.Close()
	return multierr.Append(err, closeErr)
}
