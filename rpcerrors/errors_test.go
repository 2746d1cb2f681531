package rpcerrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.uber.org/substream/rpcerrors"
)

func TestKindConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want rpcerrors.Kind
		is   func(error) bool
	}{
		{"open", rpcerrors.Open(cause), rpcerrors.KindOpen, rpcerrors.IsOpenError},
		{"send", rpcerrors.Send(cause), rpcerrors.KindSend, rpcerrors.IsSendError},
		{"recv", rpcerrors.Recv(cause), rpcerrors.KindRecv, rpcerrors.IsRecvError},
		{"early-close", rpcerrors.EarlyClose(), rpcerrors.KindEarlyClose, rpcerrors.IsEarlyClose},
		{"downcast", rpcerrors.Downcast(), rpcerrors.KindDowncast, rpcerrors.IsDowncastError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := rpcerrors.KindOf(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, k)
			assert.True(t, tt.is(tt.err))
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial refused")
	err := rpcerrors.Open(cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, fmt.Sprintf("open: %v", cause), err.Error())
}

func TestKindOfNonRPCError(t *testing.T) {
	_, ok := rpcerrors.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestOnlyOpenIsRecoverable(t *testing.T) {
	assert.True(t, rpcerrors.KindOpen.Recoverable())
	assert.False(t, rpcerrors.KindSend.Recoverable())
	assert.False(t, rpcerrors.KindRecv.Recoverable())
	assert.False(t, rpcerrors.KindEarlyClose.Recoverable())
	assert.False(t, rpcerrors.KindDowncast.Recoverable())
}
