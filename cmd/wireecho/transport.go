package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	quic "github.com/quic-go/quic-go"
)

// duplexStream is the minimal interface package endpoint needs out of a
// transport: a readable, writable, closable half-duplex pair. Both
// *tls.Conn and quic.Stream satisfy it, which is
// the point of spec.md §1 treating the transport as a pure seam.
type duplexStream interface {
	io.Reader
	io.Writer
	io.Closer
}

// dialTransport opens one duplex stream to addr using the configured
// transport. "quic" is grounded in sockatz/common.QUICProxyConn's pattern
// of handing back a net.Conn that wraps a quic.Stream after a
// quic.Dial/OpenStream handshake; "tcp" is the default tls.Dial path
// spec.md §6 assumes.
func dialTransport(ctx context.Context, transport, addr string, tlsConf *tls.Config) (duplexStream, error) {
	switch transport {
	case "quic":
		conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
		if err != nil {
			return nil, fmt.Errorf("wireecho: quic dial: %w", err)
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			return nil, fmt.Errorf("wireecho: quic open stream: %w", err)
		}
		return stream, nil

	case "tcp", "":
		dialer := tls.Dialer{Config: tlsConf}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("wireecho: tls dial: %w", err)
		}
		return conn, nil

	default:
		return nil, fmt.Errorf("wireecho: unknown transport %q", transport)
	}
}

// acceptLoop listens on addr using the configured transport and invokes
// onStream for every accepted duplex stream until ctx is cancelled.
func acceptLoop(ctx context.Context, transport, addr string, tlsConf *tls.Config, onStream func(duplexStream)) error {
	switch transport {
	case "quic":
		listener, err := quic.ListenAddr(addr, tlsConf, nil)
		if err != nil {
			return fmt.Errorf("wireecho: quic listen: %w", err)
		}
		go func() {
			<-ctx.Done()
			listener.Close()
		}()
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				return err
			}
			stream, err := conn.AcceptStream(ctx)
			if err != nil {
				continue
			}
			go onStream(stream)
		}

	case "tcp", "":
		listener, err := tls.Listen("tcp", addr, tlsConf)
		if err != nil {
			return fmt.Errorf("wireecho: tls listen: %w", err)
		}
		go func() {
			<-ctx.Done()
			listener.Close()
		}()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return err
			}
			go onStream(conn)
		}

	default:
		return fmt.Errorf("wireecho: unknown transport %q", transport)
	}
}
