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

// Package inmem implements the transport.Connector/transport.Listener
// contract over a bounded in-process MPSC queue. It is the backend used for
// tests and intra-process deployment, grounded on the keep-alive/shutdown
// discipline in the teacher's peer/bind.go and on the flume transport of
// the distilled spec's original Rust implementation.
package inmem

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
)

const defaultQueueDepth = 16

// Channel is a named in-memory substream source. A Channel's Connector and
// Listener share the same accept queue: every Open call on the Connector
// produces exactly one Accept on the Listener, preserving FIFO arrival
// order.
type Channel[Req, Res any] struct {
	name    string
	depth   int
	logger  *zap.Logger
	accept  chan *pipe[Req, Res]
	closed  *atomic.Bool
	closeMu sync.Mutex
}

// Option configures a Channel.
type Option func(*options)

type options struct {
	depth  int
	logger *zap.Logger
}

// WithQueueDepth sets the per-substream buffer depth for both directions.
// The default is 16.
func WithQueueDepth(depth int) Option {
	return func(o *options) { o.depth = depth }
}

// WithLogger attaches a logger to the Channel. The in-memory transport does
// not emit any log events itself.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a named in-memory channel. The accept queue itself is bounded
// to depth pending (opened, not yet accepted) substreams.
func New[Req, Res any](name string, opts ...Option) *Channel[Req, Res] {
	o := options{depth: defaultQueueDepth, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel[Req, Res]{
		name:   name,
		depth:  o.depth,
		logger: o.logger,
		accept: make(chan *pipe[Req, Res], o.depth),
		closed: atomic.NewBool(false),
	}
}

// Close stops the channel from accepting further opens; Listener.Accept on
// a closed channel returns an OpenError once the backlog drains.
func (c *Channel[Req, Res]) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.CompareAndSwap(false, true) {
		close(c.accept)
	}
	return nil
}

// Connector returns the client-side handle for this channel.
func (c *Channel[Req, Res]) Connector() transport.Connector[Req, Res] {
	return (*connector[Req, Res])(c)
}

// Listener returns the server-side handle for this channel. Per
// transport.Listener's contract, its Out/In are the reverse of the
// Connector's.
func (c *Channel[Req, Res]) Listener() transport.Listener[Res, Req] {
	return (*listener[Req, Res])(c)
}

// pipe is one opened substream: a pair of crossed, bounded channels plus,
// per direction, a closed flag and a sync.Once guarding the channel close.
type pipe[Req, Res any] struct {
	reqCh      chan Req
	resCh      chan Res
	reqClosed  *atomic.Bool
	resClosed  *atomic.Bool
	closeOnce1 sync.Once
	closeOnce2 sync.Once
}

func newPipe[Req, Res any](depth int) *pipe[Req, Res] {
	return &pipe[Req, Res]{
		reqCh:     make(chan Req, depth),
		resCh:     make(chan Res, depth),
		reqClosed: atomic.NewBool(false),
		resClosed: atomic.NewBool(false),
	}
}

type connector[Req, Res any] Channel[Req, Res]

func (c *connector[Req, Res]) Open(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	ch := (*Channel[Req, Res])(c)
	if ch.closed.Load() {
		return nil, nil, rpcerrors.Open(fmt.Errorf("inmem: channel %q closed", ch.name))
	}
	p := newPipe[Req, Res](ch.depth)
	select {
	case ch.accept <- p:
		return &sendHalf[Req]{ch: p.reqCh, closed: p.reqClosed, once: &p.closeOnce1}, &recvHalf[Res]{ch: p.resCh}, nil
	case <-ctx.Done():
		return nil, nil, rpcerrors.Open(ctx.Err())
	}
}

type listener[Req, Res any] Channel[Req, Res]

func (l *listener[Req, Res]) Accept(ctx context.Context) (transport.SendHalf[Res], transport.RecvHalf[Req], error) {
	ch := (*Channel[Req, Res])(l)
	select {
	case p, ok := <-ch.accept:
		if !ok {
			return nil, nil, rpcerrors.Open(fmt.Errorf("inmem: channel %q closed", ch.name))
		}
		return &sendHalf[Res]{ch: p.resCh, closed: p.resClosed, once: &p.closeOnce2}, &recvHalf[Req]{ch: p.reqCh}, nil
	case <-ctx.Done():
		return nil, nil, rpcerrors.Open(ctx.Err())
	}
}

func (l *listener[Req, Res]) LocalAddr() []transport.Addr {
	ch := (*Channel[Req, Res])(l)
	return []transport.Addr{transport.InmemAddr(ch.name)}
}

type sendHalf[T any] struct {
	ch     chan T
	closed *atomic.Bool
	once   *sync.Once
}

func (s *sendHalf[T]) Send(ctx context.Context, v T) error {
	if s.closed.Load() {
		return rpcerrors.Send(io.ErrClosedPipe)
	}
	select {
	case s.ch <- v:
		return nil
	case <-ctx.Done():
		return rpcerrors.Send(ctx.Err())
	}
}

func (s *sendHalf[T]) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
	})
	return nil
}

type recvHalf[T any] struct {
	ch chan T
}

func (r *recvHalf[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-r.ch:
		if !ok {
			return zero, io.EOF
		}
		return v, nil
	case <-ctx.Done():
		return zero, rpcerrors.Recv(ctx.Err())
	}
}
