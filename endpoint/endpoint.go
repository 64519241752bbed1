// Package endpoint implements a bidirectional, multiplexed, framed RPC
// endpoint over a reliable, ordered duplex byte stream. Its architecture —
// a handful of cooperating activities supervised by a halt-and-wait worker,
// talking over a connection the endpoint alone owns — is adapted from
// client2/connection.go's connection type, generalized from a
// mixnet-specific wire.Session to the transport-agnostic framing in
// package wire, and from client/cborplugin's incomingConn decode loop.
package endpoint

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/quietmesh/wirerpc/inflight"
	"github.com/quietmesh/wirerpc/internal/wirelog"
	"github.com/quietmesh/wirerpc/internal/worker"
	"github.com/quietmesh/wirerpc/queue"
	"github.com/quietmesh/wirerpc/wire"
)

// Default tuning values, as specified in spec.md §6.
const (
	DefaultKeepaliveInterval = 10730 * time.Millisecond // deliberately irregular
	DefaultKeepaliveTimeout  = 30 * time.Second
	DefaultMessageTimeout    = 60 * time.Second
)

// Handler answers an inbound MESSAGE payload with a RESPONSE payload. It is
// the opaque application collaborator spec.md §1 places out of scope: the
// endpoint never inspects message or response bytes.
type Handler func(payload []byte) ([]byte, error)

// Config collects an Endpoint's construction-time parameters.
type Config struct {
	Label             string
	Handler           Handler
	Reader            ioReader
	Writer            ioWriteCloser
	Debug             bool
	KeepaliveInterval time.Duration
	KeepaliveTimeout  time.Duration
	MessageTimeout    time.Duration
	LogBackend        *wirelog.Backend
	Instrumentation   *Instrumentation
}

// ioReader and ioWriteCloser narrow io.Reader/io.WriteCloser so callers can
// pass any half-duplex pair (e.g. the two directions of a net.Conn, or the
// split halves of a pipe) without importing package io just to spell the
// field types out fully at call sites.
type ioReader interface {
	Read(p []byte) (int, error)
}

type ioWriteCloser interface {
	Write(p []byte) (int, error)
	Close() error
}

// Endpoint facilitates asynchronous multiplexed remote procedure calls.
// While multiple calls can be in flight in either direction simultaneously,
// packets are still sent serially over a single stream, so an excessively
// long message or response delays all other traffic (spec.md §1).
type Endpoint struct {
	worker.Worker

	label   string
	handler atomic.Pointer[Handler]

	reader ioReader
	writer ioWriteCloser

	debug bool

	keepaliveInterval time.Duration
	keepaliveTimeout  time.Duration
	messageTimeout    time.Duration

	logBackend *wirelog.Backend
	log        *logging.Logger
	metrics    *Instrumentation

	mu            sync.Mutex
	closing       bool
	didWaitClosed bool
	runCalled     bool
	nextMessageID uint16
	peerInfo      *wire.PeerInfo

	// lastKeepaliveRecv holds a monotonic time.Time, never one
	// reconstituted from UnixNano: time.Time values produced by time.Now()
	// carry a monotonic reading, and losing it (e.g. by round-tripping
	// through Unix()/UnixNano()) would make time.Since comparisons below
	// vulnerable to wall-clock adjustments, which spec.md §3 explicitly
	// requires last-keepalive-receive-instant to be immune to.
	lastKeepaliveRecv      atomic.Pointer[time.Time]
	testSuppressKeepalives atomic.Bool

	table *inflight.Table
	out   *queue.Outgoing

	coreWG sync.WaitGroup
}

// New constructs an Endpoint bound to the given duplex stream halves. Run
// must be called to actually drive the connection.
func New(cfg Config) *Endpoint {
	keepaliveInterval := cfg.KeepaliveInterval
	if keepaliveInterval <= 0 {
		keepaliveInterval = DefaultKeepaliveInterval
	}
	keepaliveTimeout := cfg.KeepaliveTimeout
	if keepaliveTimeout <= 0 {
		keepaliveTimeout = DefaultKeepaliveTimeout
	}
	messageTimeout := cfg.MessageTimeout
	if messageTimeout <= 0 {
		messageTimeout = DefaultMessageTimeout
	}
	logBackend := cfg.LogBackend
	if logBackend == nil {
		level := "INFO"
		if cfg.Debug {
			level = "DEBUG"
		}
		logBackend, _ = wirelog.NewBackend(nil, level)
	}

	e := &Endpoint{
		label:             cfg.Label,
		reader:            cfg.Reader,
		writer:            cfg.Writer,
		debug:             cfg.Debug,
		keepaliveInterval: keepaliveInterval,
		keepaliveTimeout:  keepaliveTimeout,
		messageTimeout:    messageTimeout,
		logBackend:        logBackend,
		log:               logBackend.GetLogger(cfg.Label),
		metrics:           cfg.Instrumentation,
		// Start near the wrap point so wraparound is exercised early in
		// any reasonably long-lived connection, per spec.md §3.
		nextMessageID: 65530,
		table:         inflight.New(logBackend.GetLogger(cfg.Label + ".table")),
		out:           queue.New(),
	}
	h := cfg.Handler
	e.handler.Store(&h)
	return e
}

// IsClosing reports whether the endpoint has begun tearing down.
func (e *Endpoint) IsClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

// Run drives the endpoint until the connection is lost or Close is called,
// handling teardown of the reader/writer on return. It may be called only
// once per Endpoint.
func (e *Endpoint) Run(ctx context.Context) {
	e.mu.Lock()
	if e.runCalled {
		e.mu.Unlock()
		panic("endpoint: Run called more than once")
	}
	e.runCalled = true
	e.mu.Unlock()

	if e.debug {
		e.log.Debugf("%s: starting core activities", e.label)
	}

	e.coreWG.Add(3)
	go e.runCoreActivity("keepalive", e.runKeepaliveActivity)
	go e.runCoreActivity("read", e.runReadActivity)
	go e.runCoreActivity("write", e.runWriteActivity)

	// Also allow an external context cancellation to tear the endpoint
	// down, the Go-idiomatic sibling of the caller cancelling send_message.
	e.Go(func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-e.HaltCh():
		}
	})

	e.coreWG.Wait()

	e.Close()
	e.WaitClosed()

	if e.debug {
		e.log.Debugf("%s: finished", e.label)
	}
}

// runCoreActivity runs fn, logging any non-expected-teardown error loudly,
// and unconditionally triggers Close on return — any core activity exiting
// triggers shutdown of the others (spec.md §2, §4.9).
func (e *Endpoint) runCoreActivity(name string, fn func() error) {
	defer e.coreWG.Done()
	err := fn()
	if !isExpectedTeardown(err) {
		e.log.Errorf("%s: unexpected error in %s activity: %v", e.label, name, err)
	} else if e.debug {
		e.log.Debugf("%s: %s activity exiting cleanly: %v", e.label, name, err)
	}
	e.Close()
}

// Close begins tearing the endpoint down: it is idempotent, safe to call
// from any path, and never blocks.
func (e *Endpoint) Close() {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return
	}
	e.closing = true
	e.mu.Unlock()

	if e.debug {
		e.log.Debugf("%s: closing", e.label)
	}

	e.Halt()
	_ = e.writer.Close()

	// Drop our reference to the user handler so any ownership cycle
	// through user state is broken, mirroring `del
	// self._handle_raw_message_call` in the reference implementation.
	var nilHandler Handler
	e.handler.Store(&nilHandler)
}

// WaitClosed awaits every activity the endpoint spawned and silently
// tolerates the class of errors listed in spec.md §7. It must be called
// after Close, and is idempotent.
func (e *Endpoint) WaitClosed() {
	e.mu.Lock()
	if e.didWaitClosed {
		e.mu.Unlock()
		return
	}
	e.didWaitClosed = true
	closing := e.closing
	e.mu.Unlock()

	if !closing {
		panic("endpoint: WaitClosed called before Close")
	}

	if e.debug {
		e.log.Debugf("%s: waiting for activities to settle", e.label)
	}
	e.coreWG.Wait()
	e.Wait()
}

func (e *Endpoint) setPeerInfo(info wire.PeerInfo) {
	e.mu.Lock()
	e.peerInfo = &info
	e.mu.Unlock()
	now := time.Now()
	e.lastKeepaliveRecv.Store(&now)
}

func (e *Endpoint) hasPeerInfo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peerInfo != nil
}

func (e *Endpoint) markKeepaliveReceived() {
	now := time.Now()
	e.lastKeepaliveRecv.Store(&now)
}

func (e *Endpoint) currentHandler() Handler {
	return *e.handler.Load()
}
