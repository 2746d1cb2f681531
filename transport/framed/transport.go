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

// Package framed implements the transport.Connector/transport.Listener
// contract over any symmetric reliable byte-stream transport (net.Conn),
// using the length-delimited wire framing spec.md §6 mandates: one
// substream per dialed/accepted connection, with every envelope on it
// length-prefixed and passed through a pluggable Codec.
package framed

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
)

const defaultMaxFrame = 4 << 20 // 4 MiB; spec.md §4.2 forbids an unbounded default.

// Dialer opens one new reliable byte-stream connection per call; each
// connection becomes one substream.
type Dialer func(ctx context.Context) (net.Conn, error)

// Option configures a Connector or Listener.
type Option func(*options)

type options struct {
	maxFrame uint32
	codec    Codec
	logger   *zap.Logger
}

// WithMaxFrameLength bounds the serialized payload size of any single
// envelope. Exceeding it yields a SendError on write and a RecvError on
// read, per spec.md §4.2.
func WithMaxFrameLength(n uint32) Option {
	return func(o *options) { o.maxFrame = n }
}

// WithCodec overrides the default GobCodec.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{maxFrame: defaultMaxFrame, codec: GobCodec{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connector dials a new connection per Open call.
type Connector[Req, Res any] struct {
	dial Dialer
	opts options
}

// NewConnector builds a Connector that dials dial for each new substream.
func NewConnector[Req, Res any](dial Dialer, opts ...Option) *Connector[Req, Res] {
	return &Connector[Req, Res]{dial: dial, opts: newOptions(opts)}
}

// Open implements transport.Connector.
func (c *Connector[Req, Res]) Open(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}
	c.opts.logger.Debug("framed: dialed substream", zap.String("remote", conn.RemoteAddr().String()))
	return newSendHalf[Req](conn, c.opts), newRecvHalf[Res](conn, c.opts), nil
}

// Listener accepts one new connection per substream from an underlying
// net.Listener.
type Listener[Req, Res any] struct {
	lis  net.Listener
	opts options
}

// NewListener wraps lis. Per transport.Listener's contract its Out/In are
// the reverse of the Connector serving the same envelope pair: a Listener
// for a Connector[Req, Res] is Listener[Res, Req].
func NewListener[Req, Res any](lis net.Listener, opts ...Option) *Listener[Req, Res] {
	return &Listener[Req, Res]{lis: lis, opts: newOptions(opts)}
}

// Accept implements transport.Listener.
func (l *Listener[Req, Res]) Accept(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := l.lis.Accept()
		done <- result{conn, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, nil, rpcerrors.Open(r.err)
		}
		l.opts.logger.Debug("framed: accepted substream", zap.String("remote", r.conn.RemoteAddr().String()))
		return newSendHalf[Req](r.conn, l.opts), newRecvHalf[Res](r.conn, l.opts), nil
	case <-ctx.Done():
		return nil, nil, rpcerrors.Open(ctx.Err())
	}
}

// LocalAddr implements transport.Listener.
func (l *Listener[Req, Res]) LocalAddr() []transport.Addr {
	a := l.lis.Addr()
	return []transport.Addr{transport.NetAddr{Net: a.Network(), Addr: a.String()}}
}

// halfCloser is implemented by connections (e.g. *net.TCPConn) that support
// a true half-close. Backends without it (spec.md §4.1) cannot signal
// cancellation to the peer as precisely; Close still closes the whole
// connection, which the peer observes as end-of-stream on its next read.
type halfCloser interface {
	CloseWrite() error
}

type sendHalf[T any] struct {
	conn   net.Conn
	opts   options
	mu     sync.Mutex
	closed bool
}

func newSendHalf[T any](conn net.Conn, opts options) *sendHalf[T] {
	return &sendHalf[T]{conn: conn, opts: opts}
}

func (s *sendHalf[T]) Send(ctx context.Context, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rpcerrors.Send(fmt.Errorf("framed: send half closed"))
	}
	payload, err := s.opts.codec.Marshal(v)
	if err != nil {
		return rpcerrors.Send(err)
	}
	if err := WriteFrame(s.conn, payload, s.opts.maxFrame); err != nil {
		return rpcerrors.Send(err)
	}
	return nil
}

func (s *sendHalf[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if hc, ok := s.conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return s.conn.Close()
}

type recvHalf[T any] struct {
	conn net.Conn
	opts options
}

func newRecvHalf[T any](conn net.Conn, opts options) *recvHalf[T] {
	return &recvHalf[T]{conn: conn, opts: opts}
}

func (r *recvHalf[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	payload, err := ReadFrame(r.conn, r.opts.maxFrame)
	if err != nil {
		if isEOF(err) {
			return zero, err
		}
		return zero, rpcerrors.Recv(err)
	}
	var v T
	if err := r.opts.codec.Unmarshal(payload, &v); err != nil {
		return zero, rpcerrors.Recv(err)
	}
	return v, nil
}
