package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNewPool_DefaultValues(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantWorkers int
		wantPending int
	}{
		{"zero", Config{}, 4, 0},
		{"negative", Config{MaxConcurrent: -1, MaxPending: -3}, 4, 0},
		{"explicit", Config{MaxConcurrent: 2, MaxPending: 8}, 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.cfg, testLogger())
			if p.maxConcurrent != tt.wantWorkers || p.maxPending != tt.wantPending {
				t.Errorf("pool = (%d, %d), want (%d, %d)", p.maxConcurrent, p.maxPending, tt.wantWorkers, tt.wantPending)
			}
		})
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 2, MaxPending: 10}, testLogger())

	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		err := p.Submit("task", func(ctx context.Context) {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	waitFor(t, func() bool { return p.Stats().Active == 2 })
	if s := p.Stats(); s.Queued != 4 {
		t.Errorf("Queued = %d, want 4", s.Queued)
	}

	close(release)
	wg.Wait()

	if peak.Load() != 2 {
		t.Errorf("peak concurrency = %d, want 2", peak.Load())
	}
	waitFor(t, func() bool { return p.Stats().Completed == 6 })

	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPool_Full(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 1, MaxPending: 1}, testLogger())
	release := make(chan struct{})
	block := func(ctx context.Context) { <-release }

	if err := p.Submit("a", block); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if err := p.Submit("b", block); err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if err := p.Submit("c", block); !errors.Is(err, ErrPoolFull) {
		t.Errorf("third Submit error = %v, want ErrPoolFull", err)
	}
	if p.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", p.Stats().Rejected)
	}

	close(release)
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 1}, testLogger())
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.Submit("late", func(context.Context) {}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit error = %v, want ErrPoolStopped", err)
	}
	// A second Stop is a no-op.
	if err := p.Stop(time.Second); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestPool_StopTimeout(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 1}, testLogger())

	canceled := make(chan struct{})
	started := make(chan struct{})
	p.Submit("slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(canceled)
	})
	<-started

	if err := p.Stop(20 * time.Millisecond); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("Stop error = %v, want ErrShutdownTimeout", err)
	}

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("running task context was not canceled after the timeout")
	}
}

func TestPool_StopDropsQueued(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 1, MaxPending: 2}, testLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	var ran atomic.Int32

	p.Submit("running", func(ctx context.Context) {
		close(started)
		<-release
	})
	<-started
	p.Submit("queued", func(ctx context.Context) { ran.Add(1) })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if ran.Load() != 0 {
		t.Error("queued task should not run after Stop")
	}
}

func TestPool_RecoversPanic(t *testing.T) {
	p := NewPool(Config{MaxConcurrent: 1, MaxPending: 1}, testLogger())

	if err := p.Submit("bad", func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("Submit(bad) error = %v", err)
	}

	done := make(chan struct{})
	if err := p.Submit("good", func(context.Context) { close(done) }); err != nil {
		t.Fatalf("Submit(good) error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not survive a panicking task")
	}

	waitFor(t, func() bool { return p.Stats().Completed == 2 })
	if p.Stats().Panicked != 1 {
		t.Errorf("Panicked = %d, want 1", p.Stats().Panicked)
	}
	p.Stop(time.Second)
}

func TestErrShutdownTimeout(t *testing.T) {
	if ErrShutdownTimeout.Error() != "worker pool shutdown timed out" {
		t.Errorf("ErrShutdownTimeout = %q", ErrShutdownTimeout.Error())
	}
}
