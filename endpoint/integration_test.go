package endpoint_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quietmesh/wirerpc/endpoint"
)

// selfSignedTLSConfig builds a throwaway certificate for this test only;
// cmd/wireecho's generateSelfSignedTLSConfig is the real, documented
// version of the same thing, kept separate so the endpoint package does
// not import crypto/tls test helpers into its public surface.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          serial,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	return &tls.Config{
		Certificates:       []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: priv}},
		InsecureSkipVerify: true,
	}
}

// TestEndpointOverRealTLSLoopback exercises the handshake, one
// message/response round trip, and close over an actual tls.Listen/tls.Dial
// pair instead of net.Pipe(), the way cmd/wireecho would see it in
// practice.
func TestEndpointOverRealTLSLoopback(t *testing.T) {
	tlsConf := selfSignedTLSConfig(t)

	listener, err := tls.Listen("tcp", "127.0.0.1:0", tlsConf)
	require.NoError(t, err)
	defer listener.Close()

	serverDone := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer close(serverDone)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		server := endpoint.New(endpoint.Config{
			Label:   "server",
			Handler: echoHandler,
			Reader:  conn,
			Writer:  conn,
		})
		server.Run(ctx)
	}()

	clientConn, err := tls.Dial("tcp", listener.Addr().String(), tlsConf)
	require.NoError(t, err)

	client := endpoint.New(endpoint.Config{
		Label:   "client",
		Handler: echoHandler,
		Reader:  clientConn,
		Writer:  clientConn,
	})
	go client.Run(ctx)

	resp, err := client.SendMessage([]byte("over the wire"), time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("over the wire"), resp)

	client.Close()
	client.WaitClosed()
	cancel()

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server endpoint never shut down")
	}
}
