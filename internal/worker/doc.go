// Package worker provides a bounded goroutine pool for running jobs.
//
// The Pool keeps a fixed number of worker goroutines that take jobs from a
// shared queue, so at most NumWorkers jobs run at once. The server uses it to
// cap concurrent sort requests and to run bench jobs in the background.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	err := pool.Do(ctx, func(ctx context.Context) error {
//	    return sortSomething(ctx)
//	})
//
// Do blocks until the job has run and returns its error. Submit queues a job
// without waiting and reports false when the queue is full.
//
// # Graceful Shutdown
//
// Stop() waits for running jobs to complete and discards queued ones.
// Do and Submit return ErrPoolStopped and false once the pool is stopped.
// A panicking job is reported as an error from Do.
package worker
