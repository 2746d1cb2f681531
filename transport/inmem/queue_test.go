package inmem_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"go.uber.org/substream/rpcerrors"
	"go.uber.org/substream/transport/inmem"
)

func TestOpenAcceptRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := inmem.New[string, int]("calc")
	listener := ch.Listener()
	connector := ch.Connector()
	ctx := context.Background()

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
		if req != "ping" {
			serverDone <- assert.AnError
			return
		}
		if err := send.Send(ctx, 42); err != nil {
			serverDone <- err
			return
		}
		serverDone <- send.Close()
	}()

	send, recv, err := connector.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, send.Send(ctx, "ping"))
	res, err := recv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	require.NoError(t, send.Close())
	require.NoError(t, <-serverDone)

	_, err = recv.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenOnClosedChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ch := inmem.New[string, int]("calc")
	require.NoError(t, ch.Close())

	_, _, err := ch.Connector().Open(context.Background())
	assert.True(t, rpcerrors.IsOpenError(err))
}

func TestLocalAddr(t *testing.T) {
	ch := inmem.New[string, int]("calc")
	addrs := ch.Listener().LocalAddr()
	require.Len(t, addrs, 1)
	assert.Equal(t, "calc", addrs[0].String())
	assert.Equal(t, "inmem", addrs[0].Network())
}
