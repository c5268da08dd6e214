// Package psort implements a dynamic work-queue parallel quicksort.
//
// A Sorter copies the input into a private buffer, seeds a shared task queue
// with the whole index range and starts a fixed number of worker goroutines.
// Each worker pops a range, partitions it around its middle element and
// pushes both halves back, or sorts the range sequentially once it is shorter
// than the sequential threshold. Workers never share a range: the partition
// step splits a range into two disjoint children, so the buffer needs no
// per-element locking. The sort ends when the queue is empty and no task is
// unresolved; the buffer is then written back to the caller's sequence.
//
// # Basic Usage
//
//	psort.Ordered(values) // ascending, default config
//
//	psort.Slice(people, func(a, b Person) bool { return a.Age < b.Age })
//
// # Configuration
//
//	s := psort.New(less, psort.Config{
//	    WorkerCount:         8,    // 0 means runtime.NumCPU()
//	    SequentialThreshold: 2000, // 0 means DefaultSequentialThreshold
//	})
//	if err := s.Sort(psort.SliceSequence[int](values)); err != nil {
//	    // a worker panicked; values is unchanged
//	}
//
// # Ordering
//
// less must be a strict weak ordering with no side effects; it is called from
// several goroutines at once. The sort is not stable. The pivot is always the
// middle element of a range, so the result for a given input, predicate and
// threshold does not depend on the worker count or on scheduling.
//
// # Instrumentation
//
// Config.Observer receives every queue mutation (task queued, started,
// sorted, split), worker exits and state transitions
// (seeded, running, draining, done, failed).
package psort
