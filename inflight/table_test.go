package inflight_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quietmesh/wirerpc/inflight"
)

func TestCompleteDeliversToWaiter(t *testing.T) {
	tbl := inflight.New(nil)
	slot := tbl.Insert(42)

	tbl.Complete(42, []byte("ok"))

	select {
	case got := <-slot.Wait():
		require.Equal(t, []byte("ok"), got)
	case <-time.After(time.Second):
		t.Fatal("response never delivered")
	}
	require.Equal(t, 0, tbl.Len())
}

func TestCompleteOnAbsentIDIsSilentlyIgnored(t *testing.T) {
	tbl := inflight.New(nil)
	require.NotPanics(t, func() {
		tbl.Complete(7, []byte("late"))
	})
}

func TestDropRemovesEntryWithoutDelivering(t *testing.T) {
	tbl := inflight.New(nil)
	tbl.Insert(1)
	require.Equal(t, 1, tbl.Len())
	tbl.Drop(1)
	require.Equal(t, 0, tbl.Len())
}

func TestInsertCollisionPanics(t *testing.T) {
	tbl := inflight.New(nil)
	tbl.Insert(9)
	require.Panics(t, func() {
		tbl.Insert(9)
	})
}
