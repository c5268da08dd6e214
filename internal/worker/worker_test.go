package worker

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leopard/internal/logger"
)

func quietPool(n int) *Pool {
	pool := NewPool(n)
	pool.SetLogger(logger.New(io.Discard, logger.LevelError))
	return pool
}

func TestNewWorkerPool(t *testing.T) {
	pool := NewPool(4)
	if pool.NumWorkers() != 4 {
		t.Errorf("expected 4 workers, got %d", pool.NumWorkers())
	}

	// Zero should default to CPU count
	pool2 := NewPool(0)
	if pool2.NumWorkers() != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), pool2.NumWorkers())
	}
}

func TestWorkerPoolNegativeWorkers(t *testing.T) {
	pool := NewPool(-5)
	if pool.NumWorkers() != runtime.NumCPU() {
		t.Errorf("expected %d workers for negative input, got %d", runtime.NumCPU(), pool.NumWorkers())
	}
}

func TestWorkerPoolStartStop(t *testing.T) {
	pool := quietPool(2)
	ctx := context.Background()

	pool.Start(ctx)
	// Double start should be no-op
	pool.Start(ctx)

	pool.Stop()
	// Double stop should be no-op
	pool.Stop()
}

func TestWorkerPoolDo(t *testing.T) {
	pool := quietPool(2)
	pool.Start(context.Background())
	defer pool.Stop()

	var counter atomic.Int32
	for range 5 {
		err := pool.Do(context.Background(), func(context.Context) error {
			counter.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Do waits for the job, so no sleep is needed
	if counter.Load() != 5 {
		t.Errorf("expected 5 jobs completed, got %d", counter.Load())
	}
	if pool.InFlight() != 0 {
		t.Errorf("expected 0 in-flight jobs, got %d", pool.InFlight())
	}
}

func TestWorkerPoolDoReturnsJobError(t *testing.T) {
	pool := quietPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	boom := errors.New("boom")
	err := pool.Do(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestWorkerPoolDoRecoversPanic(t *testing.T) {
	pool := quietPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	err := pool.Do(context.Background(), func(context.Context) error { panic("bad job") })
	if err == nil || !strings.Contains(err.Error(), "bad job") {
		t.Errorf("expected panic to be reported, got %v", err)
	}

	// The worker survives the panic
	if err := pool.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("pool should keep working after a panic: %v", err)
	}
}

func TestWorkerPoolDoBeforeStart(t *testing.T) {
	pool := quietPool(1)

	err := pool.Do(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
}

func TestWorkerPoolDoAfterStop(t *testing.T) {
	pool := quietPool(2)
	pool.Start(context.Background())
	pool.Stop()

	err := pool.Do(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected Submit to return false after stop")
	}
}

func TestWorkerPoolDoContextCancel(t *testing.T) {
	pool := quietPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	blocker := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-blocker
			return nil
		})
	}()
	<-started

	// The only worker is busy, so this Do waits until its context expires
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := pool.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	close(blocker)
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	const workers = 3
	pool := quietPool(workers)
	pool.Start(context.Background())
	defer pool.Stop()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > workers {
		t.Errorf("expected at most %d concurrent jobs, got %d", workers, peak.Load())
	}
	if peak.Load() == 0 {
		t.Error("expected jobs to run")
	}
}

func TestWorkerPoolInFlight(t *testing.T) {
	pool := quietPool(1)
	pool.Start(context.Background())
	defer pool.Stop()

	blocker := make(chan struct{})
	started := make(chan struct{})
	if !pool.Submit(func(context.Context) error {
		close(started)
		<-blocker
		return nil
	}) {
		t.Fatal("expected Submit to succeed")
	}
	<-started

	if pool.InFlight() != 1 {
		t.Errorf("expected 1 in-flight job, got %d", pool.InFlight())
	}

	close(blocker)

	deadline := time.After(time.Second)
	for pool.InFlight() != 0 {
		select {
		case <-deadline:
			t.Fatalf("in-flight count stuck at %d", pool.InFlight())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWorkerPoolSubmit(t *testing.T) {
	pool := quietPool(2)
	pool.Start(context.Background())
	defer pool.Stop()

	var counter atomic.Int32
	done := make(chan struct{})

	for range 8 {
		pool.Submit(func(context.Context) error {
			if counter.Add(1) == 8 {
				close(done)
			}
			return nil
		})
	}

	select {
	case <-done:
		// Success
	case <-time.After(time.Second):
		t.Error("timeout waiting for jobs to complete")
	}
}

func TestWorkerPoolSubmitQueueFull(t *testing.T) {
	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 1, QueueFactor: 1})
	pool.SetLogger(logger.New(io.Discard, logger.LevelError))
	pool.Start(context.Background())
	defer pool.Stop()

	blocker := make(chan struct{})
	defer close(blocker)
	started := make(chan struct{})

	pool.Submit(func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	<-started

	// One slot in the queue, then full
	if !pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected the queued job to be accepted")
	}
	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected Submit to fail on a full queue")
	}
}

func TestWorkerPoolContextCancel(t *testing.T) {
	pool := quietPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	cancel()

	// Queued jobs still see the cancelled pool context
	err := make(chan error, 1)
	pool.Submit(func(ctx context.Context) error {
		err <- ctx.Err()
		return nil
	})

	select {
	case e := <-err:
		t.Errorf("job should not run after cancel, ran with %v", e)
	case <-time.After(50 * time.Millisecond):
	}

	pool.Stop()
}
