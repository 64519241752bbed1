package endpoint

import (
	"time"

	"github.com/quietmesh/wirerpc/wire"
)

// SendMessage sends a message to the peer and returns its response. A
// timeout of zero uses the endpoint's configured default
// (DefaultMessageTimeout unless overridden in Config). It returns
// InvalidArgumentError synchronously for an oversized payload, without any
// state change, and CommunicationError for every other failure mode: the
// endpoint already closing, the call timing out, or the endpoint closing
// mid-wait.
func (e *Endpoint) SendMessage(payload []byte, timeout time.Duration) ([]byte, error) {
	if len(payload) > wire.MaxPayloadLen {
		return nil, newInvalidArgumentError("message of %d bytes exceeds %d byte limit", len(payload), wire.MaxPayloadLen)
	}

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return nil, newCommunicationError("endpoint is closed")
	}
	id := e.nextMessageID
	e.nextMessageID++ // uint16 arithmetic wraps modulo 65536
	e.mu.Unlock()

	packet, err := wire.EncodeMessage(id, payload)
	if err != nil {
		// Unreachable given the length check above, but keeps the error
		// path honest if MaxPayloadLen and encodeFramed's limit ever
		// diverge.
		return nil, newInvalidArgumentError("%v", err)
	}

	slot := e.table.Insert(id)
	e.out.Push(packet)
	e.metrics.sentMessage()
	defer e.metrics.settledMessage()

	if timeout <= 0 {
		timeout = e.messageTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case response := <-slot.Wait():
		return response, nil

	case <-timer.C:
		if e.debug {
			e.log.Debugf("%s: message %d timed out", e.label, id)
		}
		e.table.Drop(id)
		e.metrics.messageTimeout()
		return nil, newCommunicationError("message %d timed out after %s", id, timeout)

	case <-e.HaltCh():
		if e.debug {
			e.log.Debugf("%s: message %d abandoned: endpoint closing", e.label, id)
		}
		e.table.Drop(id)
		return nil, newCommunicationError("endpoint closed while awaiting response to message %d", id)
	}
}
