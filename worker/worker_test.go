package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartStopWaitsForExit(t *testing.T) {
	w := New()
	var ran int32
	started := make(chan struct{})

	ok := w.Start(context.Background(), func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
		close(started)
		<-ctx.Done()
	})
	if !ok {
		t.Fatalf("Start returned false")
	}
	<-started

	w.Stop()
	if atomic.LoadInt32(&ran) != 1 {
		t.Errorf("worker function never ran")
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	w := New()
	started := make(chan struct{})
	w.Start(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	if ok := w.Start(context.Background(), func(context.Context) {}); ok {
		t.Errorf("expected second Start to be a no-op")
	}
	w.Stop()
}

func TestPauseReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Pause(ctx, time.Second) {
		t.Errorf("expected Pause to report false once ctx is canceled")
	}
}

func TestPauseReturnsTrueOnTimerFire(t *testing.T) {
	if !Pause(context.Background(), time.Millisecond) {
		t.Errorf("expected Pause to report true once the timer fires")
	}
}
