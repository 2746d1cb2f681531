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

// Package httphijack implements the transport.Connector/transport.Listener
// contract as spec.md §4.2's optional HTTP-hijack adapter: one HTTP
// request/response pair per substream, upgraded via a header handshake into
// an arbitrary bidirectional byte stream that then carries the same
// length-delimited framing as transport/framed, until half-close.
//
// Its half-close fidelity is weaker than transport/quicmux's: an HTTP/1.1
// connection has no notion of closing one direction independently once it
// has been hijacked away from the net/http server loop, so Close here falls
// back to the same best-effort CloseWrite type-assertion transport/framed
// uses, per spec.md §4.1's documented relaxation for backends that cannot
// signal cancellation to the peer as precisely.
package httphijack

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport"
	"go.uber.org/substream/transport/framed"
)

const (
	defaultMaxFrame = 4 << 20
	// HandshakePath is the fixed HTTP path the handshake request targets.
	HandshakePath = "/substream"
	// upgradeToken is this package's Upgrade: header value.
	upgradeToken = "substream.v1"
)

// Option configures a Connector or Listener.
type Option func(*options)

type options struct {
	maxFrame uint32
	codec    framed.Codec
	logger   *zap.Logger
}

// WithMaxFrameLength bounds the serialized payload size of any single
// envelope.
func WithMaxFrameLength(n uint32) Option {
	return func(o *options) { o.maxFrame = n }
}

// WithCodec overrides the default framed.GobCodec.
func WithCodec(c framed.Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger attaches a logger for handshake and connection lifecycle
// events.
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

// Connector dials addr and issues one HTTP upgrade request per Open call.
type Connector[Req, Res any] struct {
	addr string
	opts options
}

// NewConnector builds a Connector that opens new substreams against the
// HTTP server listening on addr.
func NewConnector[Req, Res any](addr string, opts ...Option) *Connector[Req, Res] {
	return &Connector[Req, Res]{addr: addr, opts: newOptions(opts)}
}

// Open implements transport.Connector: it dials a fresh TCP connection,
// sends one HTTP request asking to upgrade to the substream protocol, and
// on a 101 Switching Protocols response treats the connection as a raw
// framed byte stream for the rest of its life.
func (c *Connector[Req, Res]) Open(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, nil, rpcerrors.Open(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+c.addr+HandshakePath, nil)
	if err != nil {
		conn.Close()
		return nil, nil, rpcerrors.Open(err)
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", upgradeToken)
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, nil, rpcerrors.Open(err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, nil, rpcerrors.Open(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, nil, rpcerrors.Open(fmt.Errorf("httphijack: unexpected handshake status %s", resp.Status))
	}

	reader := bufferedReader(br, conn)
	c.opts.logger.Debug("httphijack: opened substream", zap.String("remote", conn.RemoteAddr().String()))
	return newSendHalf[Req](conn, c.opts), newRecvHalf[Res](reader, conn, c.opts), nil
}

// bufferedReader re-delivers any bytes the bufio.Reader already pulled off
// the wire past the HTTP response (e.g. the first frame, if the peer wrote
// eagerly) before resuming reads directly from conn.
func bufferedReader(br *bufio.Reader, conn net.Conn) io.Reader {
	if n := br.Buffered(); n > 0 {
		leftover, _ := br.Peek(n)
		cp := append([]byte(nil), leftover...)
		return framed.NewPrefixedReader(cp, conn)
	}
	return conn
}

// Listener runs an HTTP server whose one handler hijacks every handshake
// request into a raw substream. Out/In follow transport.Listener's
// convention relative to the Connector serving the same envelope pair.
type Listener[Req, Res any] struct {
	lis    net.Listener
	opts   options
	srv    *http.Server
	accept chan acceptResult[Req, Res]
}

type acceptResult[Req, Res any] struct {
	send transport.SendHalf[Req]
	recv transport.RecvHalf[Res]
	err  error
}

// NewListener wraps lis, serving HTTP on it until lis is closed (there is no
// explicit Close; closing lis stops serving).
func NewListener[Req, Res any](lis net.Listener, opts ...Option) *Listener[Req, Res] {
	l := &Listener[Req, Res]{
		lis:    lis,
		opts:   newOptions(opts),
		accept: make(chan acceptResult[Req, Res]),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(HandshakePath, l.handshake)
	l.srv = &http.Server{Handler: mux}
	go l.srv.Serve(lis)
	return l
}

func (l *Listener[Req, Res]) handshake(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "httphijack: hijacking unsupported", http.StatusInternalServerError)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		l.accept <- acceptResult[Req, Res]{err: rpcerrors.Open(err)}
		return
	}

	status := "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: " + upgradeToken + "\r\n\r\n"
	if _, err := conn.Write([]byte(status)); err != nil {
		conn.Close()
		l.accept <- acceptResult[Req, Res]{err: rpcerrors.Open(err)}
		return
	}

	var reader io.Reader = conn
	if buf.Reader.Buffered() > 0 {
		n := buf.Reader.Buffered()
		leftover, _ := buf.Reader.Peek(n)
		cp := append([]byte(nil), leftover...)
		reader = framed.NewPrefixedReader(cp, conn)
	}

	l.opts.logger.Debug("httphijack: accepted substream", zap.String("remote", conn.RemoteAddr().String()))
	l.accept <- acceptResult[Req, Res]{
		send: newSendHalf[Req](conn, l.opts),
		recv: newRecvHalf[Res](reader, conn, l.opts),
	}
}

// Accept implements transport.Listener.
func (l *Listener[Req, Res]) Accept(ctx context.Context) (transport.SendHalf[Req], transport.RecvHalf[Res], error) {
	select {
	case r := <-l.accept:
		if r.err != nil {
			return nil, nil, r.err
		}
		return r.send, r.recv, nil
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
// a true half-close.
type halfCloser interface {
	CloseWrite() error
}

type sendHalf[T any] struct {
	conn net.Conn
	opts options
}

func newSendHalf[T any](conn net.Conn, opts options) *sendHalf[T] {
	return &sendHalf[T]{conn: conn, opts: opts}
}

func (s *sendHalf[T]) Send(ctx context.Context, v T) error {
	payload, err := s.opts.codec.Marshal(v)
	if err != nil {
		return rpcerrors.Send(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	if err := framed.WriteFrame(s.conn, payload, s.opts.maxFrame); err != nil {
		return rpcerrors.Send(err)
	}
	return nil
}

func (s *sendHalf[T]) Close() error {
	if hc, ok := s.conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return s.conn.Close()
}

type recvHalf[T any] struct {
	reader io.Reader
	conn   net.Conn
	opts   options
}

func newRecvHalf[T any](reader io.Reader, conn net.Conn, opts options) *recvHalf[T] {
	return &recvHalf[T]{reader: reader, conn: conn, opts: opts}
}

func (r *recvHalf[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if deadline, ok := ctx.Deadline(); ok {
		_ = r.conn.SetReadDeadline(deadline)
	}
	payload, err := framed.ReadFrame(r.reader, r.opts.maxFrame)
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
