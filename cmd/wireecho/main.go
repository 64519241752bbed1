// Command wireecho is a demo client/server exercising package endpoint over
// a real TCP+TLS or QUIC transport, grounded on the cmd-style main()
// functions in ping/ping.go and talek/frontend/main.go: parse flags, load
// or default a TOML config, stand up logging and metrics, then run.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietmesh/wirerpc/endpoint"
	"github.com/quietmesh/wirerpc/internal/wirelog"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (defaults built in if empty)")
		mode       = flag.String("mode", "server", "server or client")
		transport  = flag.String("transport", "", "tcp or quic (overrides config)")
		addr       = flag.String("addr", "", "listen/dial address (overrides config)")
	)
	flag.Parse()

	cfg := Default()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *transport != "" {
		cfg.Endpoint.Transport = *transport
	}
	if *addr != "" {
		cfg.Endpoint.Address = *addr
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "wireecho",
	})
	if cfg.Logging.Disable {
		logger.SetLevel(log.FatalLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !cfg.Metrics.Disable {
		go serveMetrics(cfg.Metrics.Address, logger)
	}

	logBackend, err := wirelog.NewBackend(os.Stderr, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("building endpoint log backend", "err", err)
	}

	inst, err := endpoint.NewInstrumentation(prometheus.DefaultRegisterer, cfg.Endpoint.Label)
	if err != nil {
		logger.Fatal("registering metrics", "err", err)
	}

	tlsConf, err := generateSelfSignedTLSConfig()
	if err != nil {
		logger.Fatal("generating demo TLS config", "err", err)
	}

	switch *mode {
	case "server":
		if err := runServer(ctx, cfg, tlsConf, logBackend, inst, logger); err != nil {
			logger.Fatal("server exited", "err", err)
		}
	case "client":
		if err := runClient(ctx, cfg, tlsConf, logBackend, inst, logger); err != nil {
			logger.Fatal("client exited", "err", err)
		}
	default:
		logger.Fatal("unknown mode", "mode", *mode)
	}
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server exited", "err", err)
	}
}

// runServer accepts connections forever, running one Endpoint per accepted
// stream with the echo/reverse handler from protocol.go.
func runServer(ctx context.Context, cfg *Config, tlsConf *tls.Config, logBackend *wirelog.Backend, inst *endpoint.Instrumentation, logger *log.Logger) error {
	logger.Info("listening", "addr", cfg.Endpoint.Address, "transport", cfg.Endpoint.Transport)

	return acceptLoop(ctx, cfg.Endpoint.Transport, cfg.Endpoint.Address, tlsConf, func(stream duplexStream) {
		logger.Info("accepted connection")
		ep := endpoint.New(endpoint.Config{
			Label:             cfg.Endpoint.Label,
			Handler:           handleRequest,
			Reader:            stream,
			Writer:            stream,
			Debug:             !cfg.Logging.Disable,
			KeepaliveInterval: cfg.Endpoint.keepaliveInterval(),
			KeepaliveTimeout:  cfg.Endpoint.keepaliveTimeout(),
			MessageTimeout:    cfg.Endpoint.messageTimeout(),
			LogBackend:        logBackend,
			Instrumentation:   inst,
		})
		ep.Run(ctx)
		logger.Info("connection finished")
	})
}

// runClient dials once, then sends a single "echo" request every two
// seconds until ctx is cancelled — enough to exercise
// handshake, message/response framing, and keepalive traffic end to end.
func runClient(ctx context.Context, cfg *Config, tlsConf *tls.Config, logBackend *wirelog.Backend, inst *endpoint.Instrumentation, logger *log.Logger) error {
	stream, err := dialTransport(ctx, cfg.Endpoint.Transport, cfg.Endpoint.Address, tlsConf)
	if err != nil {
		return fmt.Errorf("wireecho: dial: %w", err)
	}

	ep := endpoint.New(endpoint.Config{
		Label:             cfg.Endpoint.Label,
		Handler:           handleRequest,
		Reader:            stream,
		Writer:            stream,
		Debug:             !cfg.Logging.Disable,
		KeepaliveInterval: cfg.Endpoint.keepaliveInterval(),
		KeepaliveTimeout:  cfg.Endpoint.keepaliveTimeout(),
		MessageTimeout:    cfg.Endpoint.messageTimeout(),
		LogBackend:        logBackend,
		Instrumentation:   inst,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		ep.Run(runCtx)
		close(done)
	}()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				req := &Request{Op: "echo", Payload: []byte("hello from wireecho")}
				payload, err := req.Marshal()
				if err != nil {
					logger.Error("marshal request", "err", err)
					continue
				}
				respPayload, err := ep.SendMessage(payload, cfg.Endpoint.messageTimeout())
				if err != nil {
					logger.Error("send message", "err", err)
					continue
				}
				resp := &Response{}
				if err := resp.Unmarshal(respPayload); err != nil {
					logger.Error("unmarshal response", "err", err)
					continue
				}
				logger.Info("got response", "payload", string(resp.Payload))
			}
		}
	}()

	<-ctx.Done()
	cancelRun()
	<-done
	return nil
}
