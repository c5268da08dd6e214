package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"leopard/internal/events"
	"leopard/internal/logger"
	"leopard/internal/metrics"
	"leopard/internal/psort"
)

// ErrVerificationFailed はソート結果が昇順でないか、入力の並べ替えになっていない場合に返る
var ErrVerificationFailed = errors.New("sort output failed verification")

// Config はベンチマークの設定
type Config struct {
	Name         string       // ベンチ名
	Description  string       // 説明
	Size         int          // 要素数
	Runs         int          // 実行回数
	Distribution Distribution // 入力分布
	Seed         uint64       // 乱数シード

	// エンジン設定
	Workers             int // ワーカー数（0以下でCPU数）
	SequentialThreshold int // 直接ソートに切り替える要素数（0以下で既定値）

	Baseline bool // slices.Sort との比較を行う
	Verbose  bool // タスク単位のイベントも発行する

	// Input が nil でなければ生成の代わりにこのデータを使う
	Input []int64
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:                "default",
		Description:         "Default benchmark",
		Size:                100_000,
		Runs:                5,
		Distribution:        DistRandom,
		Seed:                42,
		SequentialThreshold: psort.DefaultSequentialThreshold,
		Baseline:            true,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Input == nil && c.Size < 0 {
		return fmt.Errorf("size must be non-negative, got %d", c.Size)
	}
	if c.Runs <= 0 {
		return fmt.Errorf("runs must be positive, got %d", c.Runs)
	}
	if _, err := ParseDistribution(string(c.Distribution)); err != nil {
		return err
	}
	return psort.Config{WorkerCount: c.Workers, SequentialThreshold: c.SequentialThreshold}.Validate()
}

// RunResult は 1 回分の実行結果
type RunResult struct {
	Run      int           `json:"run"`
	Duration time.Duration `json:"duration_ns"`
	Checksum uint64        `json:"checksum"`
}

// Result はベンチマーク実行結果
type Result struct {
	BenchName    string        `json:"bench_name"`
	Distribution Distribution  `json:"distribution"`
	Size         int           `json:"size"`
	Seed         uint64        `json:"seed"`
	Workers      int           `json:"workers"`
	Threshold    int           `json:"sequential_threshold"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration_ns"`

	Runs          []RunResult `json:"runs"`
	Deterministic bool        `json:"deterministic"` // すべての実行で出力が一致した
	Checksum      uint64      `json:"checksum"`

	// 所要時間の統計
	MinLatency time.Duration `json:"min_latency_ns"`
	AvgLatency time.Duration `json:"avg_latency_ns"`
	P99Latency time.Duration `json:"p99_latency_ns"`
	Throughput float64       `json:"elements_per_second"`

	// slices.Sort との比較（Baseline が有効な場合のみ）
	BaselineLatency time.Duration `json:"baseline_latency_ns,omitempty"`
	Speedup         float64       `json:"speedup,omitempty"`

	// タスク統計
	TasksQueued    uint64         `json:"tasks_queued"`
	TasksSplit     uint64         `json:"tasks_split"`
	TasksSorted    uint64         `json:"tasks_sorted"`
	PeakQueueDepth int            `json:"peak_queue_depth"`
	TasksPerWorker map[int]uint64 `json:"tasks_per_worker"`
}

// Engine はベンチマーク実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	recorder *metrics.Recorder
	log      *logger.Logger

	mu      sync.RWMutex
	running bool
}

// New は新しい Engine を作成する
func New(config Config) *Engine {
	return &Engine{
		config:   config,
		recorder: metrics.New(),
		log:      logger.Named("bench"),
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はロガーを差し替える
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l.Named("bench")
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はベンチマークを実行する。コンテキストは各実行の間でのみ確認する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bench config: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("bench is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	input, err := e.input()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare input: %w", err)
	}

	e.recorder.Reset()
	sorter := psort.New(ascending, psort.Config{
		WorkerCount:         e.config.Workers,
		SequentialThreshold: e.config.SequentialThreshold,
		Observer:            e.observer(),
		Logger:              e.log,
	})

	e.log.Infof("=== Bench '%s' started ===", e.config.Name)
	e.log.Infof("%d elements (%s), %d runs, %d workers, threshold %d",
		len(input), e.config.Distribution, e.config.Runs, sorter.WorkerCount(), sorter.SequentialThreshold())

	result := &Result{
		BenchName:     e.config.Name,
		Distribution:  e.config.Distribution,
		Size:          len(input),
		Seed:          e.config.Seed,
		Workers:       sorter.WorkerCount(),
		Threshold:     sorter.SequentialThreshold(),
		StartTime:     time.Now(),
		Deterministic: true,
	}

	want := MultisetHash(input)
	for run := 1; run <= e.config.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bench cancelled before run %d: %w", run, err)
		}

		rr, err := e.runOnce(sorter, input, run, want)
		e.publish(events.NewBenchRunEvent(e.config.Name, run, len(input), rr.Duration, err))
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", run, err)
		}

		if run == 1 {
			result.Checksum = rr.Checksum
		} else if rr.Checksum != result.Checksum {
			result.Deterministic = false
		}
		result.Runs = append(result.Runs, rr)
		e.log.Debugf("run %d finished in %v", run, rr.Duration)
	}

	if e.config.Baseline {
		result.BaselineLatency = baseline(input)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	e.log.Infof("=== Bench '%s' completed ===", e.config.Name)
	return result, nil
}

// runOnce は入力のコピーを 1 回ソートして検証する
func (e *Engine) runOnce(sorter *psort.Sorter[int64], input []int64, run int, want uint64) (RunResult, error) {
	data := slices.Clone(input)

	start := time.Now()
	err := sorter.Sort(psort.SliceSequence[int64](data))
	elapsed := time.Since(start)

	rr := RunResult{Run: run, Duration: elapsed}
	if err != nil {
		return rr, err
	}
	e.recorder.RecordRun(elapsed, len(data))

	if !slices.IsSorted(data) {
		return rr, fmt.Errorf("%w: output is not ascending", ErrVerificationFailed)
	}
	if MultisetHash(data) != want {
		return rr, fmt.Errorf("%w: output is not a permutation of the input", ErrVerificationFailed)
	}
	rr.Checksum = Checksum(data)
	return rr, nil
}

func (e *Engine) input() ([]int64, error) {
	if e.config.Input != nil {
		return e.config.Input, nil
	}
	return Generate(e.config.Distribution, e.config.Size, e.config.Seed)
}

func (e *Engine) observer() psort.Observer {
	if e.eventBus == nil {
		return e.recorder
	}
	pub := events.NewPublisher(e.eventBus, e.config.Name)
	pub.Verbose = e.config.Verbose
	return psort.Observers(e.recorder, pub)
}

func (e *Engine) publish(ev events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(ev)
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	snapshot := e.recorder.Snapshot()
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.Throughput = snapshot.ElementsPerSecond
	result.TasksQueued = snapshot.TasksQueued
	result.TasksSplit = snapshot.TasksSplit
	result.TasksSorted = snapshot.TasksSorted
	result.PeakQueueDepth = snapshot.PeakQueueDepth
	result.TasksPerWorker = snapshot.TasksPerWorker

	for i, rr := range result.Runs {
		if i == 0 || rr.Duration < result.MinLatency {
			result.MinLatency = rr.Duration
		}
	}
	if result.BaselineLatency > 0 && result.MinLatency > 0 {
		result.Speedup = float64(result.BaselineLatency) / float64(result.MinLatency)
	}
}

// baseline は slices.Sort の最短所要時間を 3 回計測して返す
func baseline(input []int64) time.Duration {
	var best time.Duration
	for i := 0; i < 3; i++ {
		data := slices.Clone(input)
		start := time.Now()
		slices.Sort(data)
		if d := time.Since(start); i == 0 || d < best {
			best = d
		}
	}
	return best
}

func ascending(a, b int64) bool { return a < b }

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                          BENCH REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

INPUT
-----
  Elements:       %d
  Distribution:   %s
  Seed:           %d

ENGINE
------
  Workers:        %d
  Threshold:      %d

TIMING
------
  Runs:             %d
  Min Latency:      %v
  Avg Latency:      %v
  P99 Latency:      %v
  Throughput:       %.0f elements/s
`,
		r.BenchName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Size,
		r.Distribution,
		r.Seed,
		r.Workers,
		r.Threshold,
		len(r.Runs),
		r.MinLatency.Round(time.Microsecond),
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.Throughput,
	)

	if r.BaselineLatency > 0 {
		report += fmt.Sprintf("  slices.Sort:      %v\n  Speedup:          %.2fx\n",
			r.BaselineLatency.Round(time.Microsecond), r.Speedup)
	}

	report += fmt.Sprintf(`
TASK STATISTICS
---------------
  Queued:           %d
  Split:            %d
  Sorted Directly:  %d
  Peak Queue Depth: %d

VERIFICATION
------------
  Checksum:         %016x
  Deterministic:    %v

TASKS PER WORKER
----------------
`,
		r.TasksQueued,
		r.TasksSplit,
		r.TasksSorted,
		r.PeakQueueDepth,
		r.Checksum,
		r.Deterministic,
	)

	workers := make([]int, 0, len(r.TasksPerWorker))
	for w := range r.TasksPerWorker {
		workers = append(workers, w)
	}
	slices.Sort(workers)
	for _, w := range workers {
		report += fmt.Sprintf("  %-20s %d\n", fmt.Sprintf("worker-%d:", w), r.TasksPerWorker[w])
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Metrics は現在のメトリクスのスナップショットを返す
func (e *Engine) Metrics() metrics.Snapshot {
	return e.recorder.Snapshot()
}
