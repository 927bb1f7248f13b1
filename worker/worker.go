// Package worker is the stoppable worker primitive (spec §4.6, C6):
// start/stop a background goroutine, with an interruptible pause the
// worker's own loop can use to sleep without blocking shutdown.
//
// Grounded on original_source/collector/lib/StoppableThread's usage
// pattern as observed from its callers (GetNetworkHealthStatus.cpp's
// `thread_.Pause(...)` / `thread_.should_stop()` / `thread_.Start(...)` /
// `thread_.Stop()`; NetworkStatusNotifier.h's `StoppableThread thread_`
// field) — StoppableThread.h itself was filtered from the retrieval pack,
// so the primitive is rebuilt from its call sites rather than ported
// line-for-line. Re-expressed with context.Context + a done channel, the
// teacher's own idiom for cancellable background work (collector/collector.go's
// `ctx.Err()`-checked loop, main.go's `context.WithCancel`).
package worker

import (
	"context"
	"sync"
	"time"
)

// Worker runs fn in a background goroutine until Stop is called or ctx
// (passed to Start) is canceled.
type Worker struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New returns an idle Worker.
func New() *Worker {
	return &Worker{}
}

// Start launches fn(ctx) in a new goroutine; fn should return promptly once
// ctx is canceled. A no-op if already running.
func (w *Worker) Start(ctx context.Context, fn func(context.Context)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	done := w.done
	go func() {
		defer close(done)
		fn(runCtx)
	}()
	return true
}

// Stop cancels the worker's context and blocks until its goroutine returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.running = false
	w.mu.Unlock()

	cancel()
	<-done
}

// ShouldStop reports whether ctx has been canceled — the Go analogue of
// StoppableThread::should_stop(), for loop bodies that want to check
// cancellation without blocking.
func ShouldStop(ctx context.Context) bool {
	return ctx.Err() != nil
}

// Pause sleeps for d or until ctx is canceled, reporting whether it should
// continue running (true) or stop (false) — the Go analogue of
// StoppableThread::Pause(duration), which returns false once a stop has
// been requested.
func Pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
