package httphijack_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport/httphijack"
)

type addReq struct{ A, B int64 }

func TestHTTPHijackRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	listener := httphijack.NewListener[int64, addReq](lis)
	connector := httphijack.NewConnector[addReq, int64](lis.Addr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		send, recv, err := listener.Accept(ctx)
		if err != nil {
			serverDone <- err
			return
		}
		req, err := recv.Recv(ctx)
		if err != nil {
			serverDone <- err
			return
		}
		if err := send.Send(ctx, req.A+req.B); err != nil {
			serverDone <- err
			return
		}
		serverDone <- send.Close()
	}()

	send, recv, err := connector.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, send.Send(ctx, addReq{A: 6, B: 7}))
	res, err := recv.Recv(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 13, res)
	require.NoError(t, send.Close())
	require.NoError(t, <-serverDone)
}

func TestHTTPHijackLocalAddr(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	listener := httphijack.NewListener[addReq, int64](lis)
	addrs := listener.LocalAddr()
	require.Len(t, addrs, 1)
	assert.Equal(t, "tcp", addrs[0].Network())
}

func TestHTTPHijackOpenFailsAgainstPlainHTTP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	// No listener.handshake is registered; a plain TCP server answers the
	// handshake with 400 Bad Request instead of 101 Switching Protocols,
	// so Open reports an OpenError rather than silently succeeding.
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
	}()

	connector := httphijack.NewConnector[addReq, int64](lis.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _, err = connector.Open(ctx)
	require.Error(t, err)
	assert.True(t, rpcerrors.IsOpenError(err))
}
