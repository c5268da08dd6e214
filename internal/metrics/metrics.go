package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"leopard/internal/psort"
)

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: 1000}
}

// Recorder はソートエンジンのタスク履歴と実行時間を集計する。
// psort.Observer を実装しているので Config.Observer にそのまま渡せる。
type Recorder struct {
	sorts          atomic.Uint64
	failures       atomic.Uint64
	tasksQueued    atomic.Uint64
	tasksStarted   atomic.Uint64
	tasksSorted    atomic.Uint64
	tasksSplit     atomic.Uint64
	directElements atomic.Uint64
	workerExits    atomic.Uint64

	runs           atomic.Uint64
	runElements    atomic.Uint64
	totalLatencyNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	depth             int
	peakDepth         int
	perWorker         map[int]uint64
	latencies         []time.Duration
	maxLatencySamples int
}

var _ psort.Observer = (*Recorder)(nil)

// New は新しい Recorder を作成する
func New() *Recorder {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定して Recorder を作成する
func NewWithConfig(config Config) *Recorder {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = DefaultConfig().MaxLatencySamples
	}
	return &Recorder{
		startTime:         time.Now(),
		perWorker:         make(map[int]uint64),
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// StateChanged は完了・失敗したソートを数える
func (r *Recorder) StateChanged(s psort.State) {
	switch s {
	case psort.StateDone:
		r.sorts.Add(1)
	case psort.StateFailed:
		r.failures.Add(1)
	}
}

// TaskQueued はキューに積まれたタスクを数える
func (r *Recorder) TaskQueued(psort.Task) {
	r.tasksQueued.Add(1)

	r.mu.Lock()
	r.depth++
	if r.depth > r.peakDepth {
		r.peakDepth = r.depth
	}
	r.mu.Unlock()
}

// TaskStarted はワーカーが取り出したタスクを数える
func (r *Recorder) TaskStarted(worker int, _ psort.Task) {
	r.tasksStarted.Add(1)

	r.mu.Lock()
	r.depth--
	r.perWorker[worker]++
	r.mu.Unlock()
}

// TaskSorted は直接ソートされたタスクと要素数を数える
func (r *Recorder) TaskSorted(_ int, t psort.Task) {
	r.tasksSorted.Add(1)
	r.directElements.Add(uint64(t.Len()))
}

// TaskSplit は分割されたタスクを数える
func (r *Recorder) TaskSplit(int, psort.Task, psort.Task, psort.Task) {
	r.tasksSplit.Add(1)
}

// WorkerExited は終了したワーカーを数える
func (r *Recorder) WorkerExited(int) {
	r.workerExits.Add(1)
}

// RecordRun は 1 回のソートの所要時間と要素数を記録する
func (r *Recorder) RecordRun(latency time.Duration, elements int) {
	r.runs.Add(1)
	r.runElements.Add(uint64(elements))
	r.totalLatencyNs.Add(uint64(latency.Nanoseconds()))

	r.mu.Lock()
	if len(r.latencies) < r.maxLatencySamples {
		r.latencies = append(r.latencies, latency)
	}
	r.mu.Unlock()
}

// Sorts は完了したソート数を返す
func (r *Recorder) Sorts() uint64 {
	return r.sorts.Load()
}

// Failures は失敗したソート数を返す
func (r *Recorder) Failures() uint64 {
	return r.failures.Load()
}

// TasksQueued はキューに積まれたタスク数の累計を返す
func (r *Recorder) TasksQueued() uint64 {
	return r.tasksQueued.Load()
}

// TasksSplit は分割されたタスク数の累計を返す
func (r *Recorder) TasksSplit() uint64 {
	return r.tasksSplit.Load()
}

// TasksSorted は直接ソートされたタスク数の累計を返す
func (r *Recorder) TasksSorted() uint64 {
	return r.tasksSorted.Load()
}

// PeakQueueDepth はキューに同時に積まれていたタスク数の最大値を返す
func (r *Recorder) PeakQueueDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peakDepth
}

// TasksPerWorker はワーカーごとの処理タスク数のコピーを返す
func (r *Recorder) TasksPerWorker() map[int]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.perWorker)
}

// AverageLatency は RecordRun で記録した平均所要時間を返す
func (r *Recorder) AverageLatency() time.Duration {
	runs := r.runs.Load()
	if runs == 0 {
		return 0
	}
	return time.Duration(r.totalLatencyNs.Load() / runs)
}

// P99Latency は P99 所要時間を返す（サンプルベース）
func (r *Recorder) P99Latency() time.Duration {
	r.mu.RLock()
	sorted := make([]time.Duration, len(r.latencies))
	copy(sorted, r.latencies)
	r.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}

	psort.Ordered(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// ElementsPerSecond はソート処理時間あたりの要素数を返す
func (r *Recorder) ElementsPerSecond() float64 {
	ns := r.totalLatencyNs.Load()
	if ns == 0 {
		return 0
	}
	return float64(r.runElements.Load()) / (float64(ns) / float64(time.Second))
}

// Reset はすべてのカウンタとサンプルをリセットする
func (r *Recorder) Reset() {
	for _, c := range []*atomic.Uint64{
		&r.sorts, &r.failures, &r.tasksQueued, &r.tasksStarted, &r.tasksSorted,
		&r.tasksSplit, &r.directElements, &r.workerExits,
		&r.runs, &r.runElements, &r.totalLatencyNs,
	} {
		c.Store(0)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.startTime = time.Now()
	r.depth = 0
	r.peakDepth = 0
	clear(r.perWorker)
	r.latencies = r.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Sorts             uint64         `json:"sorts"`
	Failures          uint64         `json:"failures"`
	TasksQueued       uint64         `json:"tasks_queued"`
	TasksStarted      uint64         `json:"tasks_started"`
	TasksSorted       uint64         `json:"tasks_sorted"`
	TasksSplit        uint64         `json:"tasks_split"`
	DirectElements    uint64         `json:"direct_elements"`
	WorkerExits       uint64         `json:"worker_exits"`
	PeakQueueDepth    int            `json:"peak_queue_depth"`
	TasksPerWorker    map[int]uint64 `json:"tasks_per_worker"`
	Runs              uint64         `json:"runs"`
	AverageLatency    time.Duration  `json:"average_latency_ns"`
	P99Latency        time.Duration  `json:"p99_latency_ns"`
	ElementsPerSecond float64        `json:"elements_per_second"`
	Elapsed           time.Duration  `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	start := r.startTime
	r.mu.RUnlock()

	return Snapshot{
		Sorts:             r.Sorts(),
		Failures:          r.Failures(),
		TasksQueued:       r.TasksQueued(),
		TasksStarted:      r.tasksStarted.Load(),
		TasksSorted:       r.TasksSorted(),
		TasksSplit:        r.TasksSplit(),
		DirectElements:    r.directElements.Load(),
		WorkerExits:       r.workerExits.Load(),
		PeakQueueDepth:    r.PeakQueueDepth(),
		TasksPerWorker:    r.TasksPerWorker(),
		Runs:              r.runs.Load(),
		AverageLatency:    r.AverageLatency(),
		P99Latency:        r.P99Latency(),
		ElementsPerSecond: r.ElementsPerSecond(),
		Elapsed:           time.Since(start),
	}
}
