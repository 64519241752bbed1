package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quietmesh/wirerpc/internal/worker"
)

func TestHaltStopsTrackedGoroutines(t *testing.T) {
	var w worker.Worker
	started := make(chan struct{})
	stopped := make(chan struct{})

	w.Go(func() {
		close(started)
		<-w.HaltCh()
		close(stopped)
	})

	<-started
	w.Halt()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("goroutine never observed Halt")
	}
	w.Wait()
}

func TestHaltIsIdempotent(t *testing.T) {
	var w worker.Worker
	require.NotPanics(t, func() {
		w.Halt()
		w.Halt()
	})
}

func TestWaitBlocksUntilAllGoroutinesReturn(t *testing.T) {
	var w worker.Worker
	release := make(chan struct{})
	const n = 5
	for i := 0; i < n; i++ {
		w.Go(func() {
			<-release
		})
	}

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before goroutines were released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after goroutines were released")
	}
}
