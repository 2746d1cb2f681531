package quicmux_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/substream/transport/quicmux"
)

// generateTLSConfig produces a throwaway self-signed certificate for a
// loopback QUIC listener, exactly the kind of setup spec.md §6 leaves to
// the host application.
func generateTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"substream-test"},
	}
}

type addReq struct{ A, B int64 }

func TestQuicmuxRoundTrip(t *testing.T) {
	tlsConf := generateTLSConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := quic.ListenAddr("127.0.0.1:0", tlsConf, nil)
	require.NoError(t, err)
	defer ln.Close()

	serverConnCh := make(chan *quic.Conn, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		require.NoError(t, err)
		serverConnCh <- conn
	}()

	clientConn, err := quic.DialAddr(ctx, ln.Addr().String(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"substream-test"},
	}, nil)
	require.NoError(t, err)

	serverConn := <-serverConnCh

	connector := quicmux.NewConnector[addReq, int64](quicmux.StaticEndpoint{Conn: clientConn})
	listener := quicmux.NewListener[int64, addReq](quicmux.StaticEndpoint{Conn: serverConn})

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
	require.NoError(t, send.Send(ctx, addReq{A: 4, B: 5}))
	res, err := recv.Recv(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 9, res)
	require.NoError(t, send.Close())
	require.NoError(t, <-serverDone)
}
