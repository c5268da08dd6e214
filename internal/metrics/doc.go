// Package metrics collects statistics about parallel sort runs.
//
// A Recorder implements psort.Observer, so it counts queued, split and
// directly sorted tasks, worker exits, per-worker task counts and the peak
// queue depth while a sort runs. RecordRun adds wall-clock samples used for
// average and P99 latency and for throughput (elements per second).
//
// # Basic Usage
//
//	rec := metrics.New()
//	s := psort.New(less, psort.Config{Observer: rec})
//
//	start := time.Now()
//	_ = s.Sort(seq)
//	rec.RecordRun(time.Since(start), seq.Len())
//
//	snap := rec.Snapshot()
//	fmt.Printf("splits: %d, p99: %v\n", snap.TasksSplit, snap.P99Latency)
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	rec := metrics.NewWithConfig(config)
//
// # Thread Safety
//
// Counters are atomic and the remaining state is guarded by a mutex, so one
// Recorder may observe several concurrent sorts.
package metrics
