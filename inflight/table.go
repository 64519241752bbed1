// Package inflight tracks MESSAGE packets awaiting their RESPONSE, keyed
// by the wrapping 16-bit correlation id. Its map+mutex shape is adapted
// from client2/arq.go's ARQ.surbIDMap (a locked map from a wire identifier
// to a pending-send record), stripped of SURB/retransmission semantics:
// this table is single-shot per spec.md — a late response after timeout is
// silently dropped rather than retried.
package inflight

import (
	"fmt"
	"sync"

	logging "gopkg.in/op/go-logging.v1"
)

// Slot is a single-shot cell a sender waits on for its response.
type Slot struct {
	ch chan []byte
}

// Wait returns the channel on which the response is delivered. It does not
// block itself; callers select on the channel alongside a timeout.
func (s *Slot) Wait() <-chan []byte {
	return s.ch
}

// Table maps in-flight correlation ids to their waiting Slot.
type Table struct {
	mu  sync.Mutex
	m   map[uint16]*Slot
	log *logging.Logger
}

// New returns an empty in-flight table. log may be nil.
func New(log *logging.Logger) *Table {
	return &Table{m: make(map[uint16]*Slot), log: log}
}

// Insert creates and registers a Slot for id. It panics if id is already
// present: the wraparound invariant (spec.md §3) guarantees this never
// happens in practice, so a collision is a programming error, not a
// recoverable condition — mirroring the reference implementation's
// `assert message_id not in self._in_flight_messages`.
func (t *Table) Insert(id uint16) *Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.m[id]; exists {
		panic(fmt.Sprintf("inflight: id %d already in flight", id))
	}
	slot := &Slot{ch: make(chan []byte, 1)}
	t.m[id] = slot
	return slot
}

// Complete delivers a response to the waiter for id. If id is absent —
// the caller already timed out or cancelled — the response is silently
// dropped; this is a normal, expected occurrence (spec.md §4.3), logged
// only at debug verbosity.
func (t *Table) Complete(id uint16, payload []byte) {
	t.mu.Lock()
	slot, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()

	if !ok {
		if t.log != nil {
			t.log.Debugf("got response for id %d with no in-flight record; likely timed out", id)
		}
		return
	}
	slot.ch <- payload
}

// Drop removes id's entry without delivering anything, used by the sender
// itself after a timeout or cancellation.
func (t *Table) Drop(id uint16) {
	t.mu.Lock()
	delete(t.m, id)
	t.mu.Unlock()
}

// Len reports the number of messages currently in flight.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
