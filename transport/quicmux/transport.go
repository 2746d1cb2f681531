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

// Package quicmux implements the transport.Connector/transport.Listener
// contract over one already-established QUIC connection: each substream is
// one QUIC stream, opened with OpenStreamSync or yielded by AcceptStream.
// ALPN and credential setup are the host application's concern (spec.md
// §6); this package takes a live *quic.Conn (or an Endpoint that produces
// one) and never dials or listens on a UDP socket itself.
//
// Grounded on the quic-go client usage in the retrieval pack
// (getmockd/mockd's pkg/tunnel/quic client, which dials with
// quic.DialAddr and multiplexes calls with OpenStreamSync/AcceptStream).
package quicmux

import (
	"context"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
	"go.uber.org/substream/transport/framed"
)

const defaultMaxFrame = 4 << 20

// Endpoint supplies the single QUIC connection a Connector or Listener
// multiplexes substreams over. Re-dialing or re-accepting the physical
// connection after it drops is the Endpoint's responsibility (see S4 in
// spec.md §8: stop the server, wait, restart with the same identity, reuse
// the same client). A simple Endpoint just returns the same *quic.Conn
// every time; a reconnecting one redials on demand.
type Endpoint interface {
	Connection(ctx context.Context) (*quic.Conn, error)
}

// StaticEndpoint is an Endpoint over one fixed, already-dialed connection.
type StaticEndpoint struct{ Conn *quic.Conn }

// Connection implements Endpoint.
func (s StaticEndpoint) Connection(context.Context) (*quic.Conn, error) { return s.Conn, nil }

// Option configures a Connector or Listener.
type Option func(*options)

type options struct {
	maxFrame uint32
	codec    framed.Codec
	logger   *zap.Logger
}

// WithMaxFrameLength bounds the serialized payload size of any single
// envelope on a QUIC stream.
func WithMaxFrameLength(n uint32) Option {
	return func(o *options) { o.maxFrame = n }
}

// WithCodec overrides the default framed.GobCodec.
func WithCodec(c framed.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger attaches a logger for stream lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newOptions(opts []Option) options {
	o := options{maxFrame: defaultMaxFrame, codec: framed.GobCodec{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Connector opens a new QUIC stream per substream.
type Connector[Req, Res any] struct {
	endpoint Endpoint
	opts     options
}

// NewConnector builds a Connector over endpoint.
func NewConnector[Req, Res any](endpoint Endpoint, opts ...Option) *Connector[Req, Res] {
	return &Connector[Req, Res]{endpoint: endpoint, opts: newOptions(opts)}
}

// Open implements transport.Connector.
func (c *Connector[Req, Res]) Open(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	conn, err := c.endpoint.Connection(ctx)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}
	c.opts.logger.Debug("quicmux: opened stream", zap.Int64("stream_id", int64(stream.StreamID())))
	return newSendHalf[Req](stream, c.opts), newRecvHalf[Res](stream, c.opts), nil
}

// Listener accepts new QUIC streams as substreams.
type Listener[Req, Res any] struct {
	endpoint Endpoint
	opts     options
}

// NewListener builds a Listener over endpoint. Per transport.Listener's
// contract its Out/In are the reverse of the Connector serving the same
// envelope pair: a Listener for a Connector[Req, Res] is
// Listener[Res, Req].
func NewListener[Req, Res any](endpoint Endpoint, opts ...Option) *Listener[Req, Res] {
	return &Listener[Req, Res]{endpoint: endpoint, opts: newOptions(opts)}
}

// Accept implements transport.Listener.
func (l *Listener[Req, Res]) Accept(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	conn, err := l.endpoint.Connection(ctx)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}
	l.opts.logger.Debug("quicmux: accepted stream", zap.Int64("stream_id", int64(stream.StreamID())))
	return newSendHalf[Req](stream, l.opts), newRecvHalf[Res](stream, l.opts), nil
}

// LocalAddr implements transport.Listener. QUIC connections are keyed by an
// established session rather than a fresh dialable address, so this
// reports an opaque node address rather than an IP:port.
func (l *Listener[Req, Res]) LocalAddr() []transport.Addr {
	conn, err := l.endpoint.Connection(context.Background())
	if err != nil {
		return nil
	}
	return []transport.Addr{transport.NodeAddr(fmt.Sprintf("quic:%s", conn.LocalAddr()))}
}

type sendHalf[T any] struct {
	stream *quic.Stream
	opts   options
}

func newSendHalf[T any](stream *quic.Stream, opts options) *sendHalf[T] {
	return &sendHalf[T]{stream: stream, opts: opts}
}

func (s *sendHalf[T]) Send(ctx context.Context, v T) error {
	payload, err := s.opts.codec.Marshal(v)
	if err != nil {
		return rpcerrors.Send(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.stream.SetWriteDeadline(deadline)
	}
	if err := framed.WriteFrame(s.stream, payload, s.opts.maxFrame); err != nil {
		return rpcerrors.Send(err)
	}
	return nil
}

// Close closes the write side of the QUIC stream. Unlike the framed
// adapter's best-effort CloseWrite, this is QUIC's native half-close: the
// peer observes end-of-stream on its next read without the connection
// itself being torn down.
func (s *sendHalf[T]) Close() error {
	return s.stream.Close()
}

type recvHalf[T any] struct {
	stream *quic.Stream
	opts   options
}

func newRecvHalf[T any](stream *quic.Stream, opts options) *recvHalf[T] {
	return &recvHalf[T]{stream: stream, opts: opts}
}

func (r *recvHalf[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if deadline, ok := ctx.Deadline(); ok {
		_ = r.stream.SetReadDeadline(deadline)
	}
	payload, err := framed.ReadFrame(r.stream, r.opts.maxFrame)
	if err != nil {
		if err == io.EOF {
			return zero, io.EOF
		}
		return zero, rpcerrors.Recv(err)
	}
	var v T
	if err := r.opts.codec.Unmarshal(payload, &v); err != nil {
		return zero, rpcerrors.Recv(err)
	}
	return v, nil
}
