package endpoint

import (
	"fmt"
	"time"

	"github.com/quietmesh/wirerpc/wire"
)

// runReadActivity is adapted from client/cborplugin.incomingConn.worker's
// decode-then-dispatch loop: read one unit off the stream, act on it,
// repeat until the stream errors or a protocol violation is detected.
func (e *Endpoint) runReadActivity() error {
	info, err := wire.ReadHandshake(e.reader)
	if err != nil {
		return err
	}
	e.setPeerInfo(info)
	if e.debug {
		e.log.Debugf("%s: received handshake: protocol=%d keepalive=%.2fs", e.label, info.Protocol, info.KeepaliveInterval)
	}

	for {
		tag, err := wire.ReadTag(e.reader)
		if err != nil {
			return err
		}

		switch tag {
		case wire.Handshake:
			return newProtocolError("received a second handshake")

		case wire.Keepalive:
			if e.debug {
				e.log.Debugf("%s: received keepalive", e.label)
			}
			e.markKeepaliveReceived()

		case wire.Message:
			if err := e.handleMessagePacket(); err != nil {
				return err
			}

		case wire.Response:
			if err := e.handleResponsePacket(); err != nil {
				return err
			}

		default:
			return newProtocolError("received unknown packet tag %d", tag)
		}
	}
}

func (e *Endpoint) handleMessagePacket() error {
	id, payload, err := wire.ReadIDAndPayload(e.reader)
	if err != nil {
		return err
	}
	if e.debug {
		e.log.Debugf("%s: received message %d of size %d", e.label, id, len(payload))
	}
	e.metrics.receivedMessage()

	// Handed off to a tracked goroutine so a slow handler never blocks the
	// reader from servicing the rest of the multiplexed stream.
	e.Go(func() {
		e.runHandlerActivity(id, payload)
	})
	return nil
}

func (e *Endpoint) handleResponsePacket() error {
	id, payload, err := wire.ReadIDAndPayload(e.reader)
	if err != nil {
		return err
	}
	if e.debug {
		e.log.Debugf("%s: received response %d of size %d", e.label, id, len(payload))
	}
	e.table.Complete(id, payload)
	return nil
}

// runHandlerActivity invokes the user-supplied Handler for one inbound
// MESSAGE. If it returns an error, the failure is logged loudly and no
// RESPONSE is sent — the peer will eventually time out waiting
// (spec.md §4.7). It never terminates the endpoint.
func (e *Endpoint) runHandlerActivity(id uint16, payload []byte) {
	handler := e.currentHandler()
	if handler == nil {
		return
	}

	response, err := e.invokeHandler(handler, id, payload)
	if err != nil {
		e.log.Errorf("%s: handler error for message %d: %v", e.label, id, err)
		return
	}
	if len(response) > wire.MaxPayloadLen {
		e.log.Errorf("%s: handler for message %d returned %d bytes, exceeding the %d byte limit; dropping response", e.label, id, len(response), wire.MaxPayloadLen)
		return
	}

	packet, err := wire.EncodeResponse(id, response)
	if err != nil {
		e.log.Errorf("%s: failed to encode response for message %d: %v", e.label, id, err)
		return
	}
	e.out.Push(packet)
	e.metrics.sentResponse()
}

// invokeHandler recovers a panicking Handler the same way
// _handle_raw_message_call's failures are caught in the reference
// implementation: logged, with no response ever sent for that message.
func (e *Endpoint) invokeHandler(handler Handler, id uint16, payload []byte) (response []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(payload)
}

// runWriteActivity is adapted from client2/connection.go's onTCPConn
// handshake-then-loop shape, generalized from a wire.Session to package
// wire's framing and from a channel-fed send path to the outgoing FIFO.
func (e *Endpoint) runWriteActivity() error {
	ourInfo := wire.PeerInfo{
		Protocol:          wire.OurProtocol,
		KeepaliveInterval: e.keepaliveInterval.Seconds(),
	}
	if err := wire.WriteHandshake(e.writer, ourInfo); err != nil {
		return err
	}

	for {
		select {
		case <-e.out.Signal():
		case <-e.HaltCh():
			return nil
		}

		for {
			data, ok := e.out.Pop()
			if !ok {
				break
			}
			if _, err := e.writer.Write(data); err != nil {
				return err
			}
		}
	}
}

// runKeepaliveActivity periodically enqueues KEEPALIVE packets and
// monitors for peer staleness, adapted from
// client2/connection.go's connectWorker polling loop.
func (e *Endpoint) runKeepaliveActivity() error {
	ticker := time.NewTicker(e.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.HaltCh():
			return nil
		case <-ticker.C:
		}

		if !e.testSuppressKeepalives.Load() {
			e.out.Push(wire.EncodeKeepalive())
		}

		if !e.hasPeerInfo() {
			// The reader always consumes the handshake before the first
			// keepalive interval elapses in normal operation; if a caller
			// configures a keepalive interval shorter than the handshake
			// read takes, treat it as this connection's problem rather
			// than panicking the whole process (runCoreActivity logs and
			// tears down just this endpoint).
			return newProtocolError("keepalive activity ticked before handshake was received")
		}

		last := e.lastKeepaliveRecv.Load()
		since := time.Since(*last)
		if since > e.keepaliveTimeout {
			if e.debug {
				e.log.Debugf("%s: reached keepalive timeout (%.1fs)", e.label, since.Seconds())
			}
			e.metrics.keepaliveTimeout()
			return errKeepaliveTimeout
		}
	}
}

// SuppressKeepalivesForTesting enables test-mode keepalive suppression
// (spec.md §4.6, §8 scenario 6): this endpoint will stop emitting its own
// KEEPALIVE packets while still monitoring the peer's.
func (e *Endpoint) SuppressKeepalivesForTesting() {
	e.testSuppressKeepalives.Store(true)
}
