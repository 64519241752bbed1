package queue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietmesh/wirerpc/queue"
)

func TestFIFOOrder(t *testing.T) {
	q := queue.New()
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Push([]byte("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, string(got))
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestSignalFiresOnPushAndClearsAfterDrain(t *testing.T) {
	q := queue.New()
	q.Push([]byte("x"))

	select {
	case <-q.Signal():
	default:
		t.Fatal("signal should be set after a push")
	}

	data, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "x", string(data))

	select {
	case <-q.Signal():
		t.Fatal("signal should be cleared once the queue is drained")
	default:
	}
}

func TestSignalStaysSetWhilePacketsRemain(t *testing.T) {
	q := queue.New()
	q.Push([]byte("1"))
	q.Push([]byte("2"))

	_, ok := q.Pop()
	require.True(t, ok)

	select {
	case <-q.Signal():
	default:
		t.Fatal("signal should still be set: one packet remains")
	}
}
