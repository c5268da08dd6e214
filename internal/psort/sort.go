package psort

import (
	"cmp"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"leopard/internal/logger"
)

// DefaultSequentialThreshold はこの要素数未満のタスクを分割せず直接ソートする既定値
const DefaultSequentialThreshold = 1000

// Sequence is a mutable random-access container.
type Sequence[T any] interface {
	Len() int
	At(i int) T
	Set(i int, v T)
}

// SliceSequence adapts a slice to Sequence.
type SliceSequence[T any] []T

func (s SliceSequence[T]) Len() int       { return len(s) }
func (s SliceSequence[T]) At(i int) T     { return s[i] }
func (s SliceSequence[T]) Set(i int, v T) { s[i] = v }

// Config はソートエンジンの設定
type Config struct {
	WorkerCount         int            // ワーカー数（0以下でCPU数）
	SequentialThreshold int            // この要素数未満のタスクは直接ソート（0以下で既定値）
	Observer            Observer       // タスク履歴の通知先（nil可）
	Logger              *logger.Logger // nil なら logger.Default
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		WorkerCount:         runtime.NumCPU(),
		SequentialThreshold: DefaultSequentialThreshold,
	}
}

// Validate は設定を検証する。0 は既定値を意味するので許可する
func (c Config) Validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("%w: worker count must be non-negative, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.SequentialThreshold < 0 {
		return fmt.Errorf("%w: sequential threshold must be non-negative, got %d", ErrInvalidConfig, c.SequentialThreshold)
	}
	return nil
}

// resolve は未指定の項目を既定値で埋めた設定を返す
func (c Config) resolve() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = max(runtime.NumCPU(), 1)
	}
	if c.SequentialThreshold <= 0 {
		c.SequentialThreshold = DefaultSequentialThreshold
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	if c.Logger == nil {
		c.Logger = logger.Default
	}
	return c
}

// Sorter sorts sequences of T with a fixed predicate and configuration.
// A Sorter holds no per-call state and may be used from several goroutines.
type Sorter[T any] struct {
	less func(a, b T) bool
	cfg  Config
	log  *logger.Logger
}

// New returns a Sorter ordering elements by less, which must be a strict weak
// ordering that is safe to call from several goroutines at once.
func New[T any](less func(a, b T) bool, cfg Config) *Sorter[T] {
	if less == nil {
		panic("psort: nil less function")
	}
	cfg = cfg.resolve()
	return &Sorter[T]{
		less: less,
		cfg:  cfg,
		log:  cfg.Logger.Named("psort"),
	}
}

// WorkerCount returns the number of workers started per sort.
func (s *Sorter[T]) WorkerCount() int {
	return s.cfg.WorkerCount
}

// SequentialThreshold returns the task length below which ranges are sorted
// without further splitting.
func (s *Sorter[T]) SequentialThreshold() int {
	return s.cfg.SequentialThreshold
}

// Sort sorts seq in place. Sequences of length 0 or 1 return immediately
// without starting any worker.
//
// Sort works on a private copy of seq and writes it back only after every
// worker has exited, so seq is never observed partially sorted. If a worker
// panics the returned error is a *WorkerFault and seq is left unchanged.
func (s *Sorter[T]) Sort(seq Sequence[T]) error {
	n := seq.Len()
	if n <= 1 {
		return nil
	}

	buf := make([]T, n)
	load(buf, seq)

	q := newTaskQueue(s.cfg.Observer)
	q.push(Task{Low: 0, High: n - 1})
	q.setState(StateSeeded)

	start := time.Now()
	s.log.Debugf("sorting %d elements with %d workers (sequential threshold %d)",
		n, s.cfg.WorkerCount, s.cfg.SequentialThreshold)

	q.setState(StateRunning)

	var g errgroup.Group
	for i := range s.cfg.WorkerCount {
		w := &worker[T]{
			id:        i,
			buf:       buf,
			less:      s.less,
			threshold: s.cfg.SequentialThreshold,
			queue:     q,
			log:       s.log,
		}
		g.Go(w.run)
	}

	if err := g.Wait(); err != nil {
		q.setState(StateFailed)
		s.log.Errorf("sort of %d elements failed: %v", n, err)
		return err
	}

	q.setState(StateDone)
	store(seq, buf)

	s.log.Debugf("sorted %d elements in %v", n, time.Since(start))
	return nil
}

func load[T any](buf []T, seq Sequence[T]) {
	if s, ok := seq.(SliceSequence[T]); ok {
		copy(buf, s)
		return
	}
	for i := range buf {
		buf[i] = seq.At(i)
	}
}

func store[T any](seq Sequence[T], buf []T) {
	if s, ok := seq.(SliceSequence[T]); ok {
		copy(s, buf)
		return
	}
	for i, v := range buf {
		seq.Set(i, v)
	}
}

// Sort sorts seq in place with DefaultConfig. It panics with a *WorkerFault
// if less panics; seq is unchanged in that case.
func Sort[T any](seq Sequence[T], less func(a, b T) bool) {
	if err := New(less, DefaultConfig()).Sort(seq); err != nil {
		panic(err)
	}
}

// Slice sorts s in place with DefaultConfig.
func Slice[T any](s []T, less func(a, b T) bool) {
	Sort(SliceSequence[T](s), less)
}

// Ordered sorts s in ascending order using cmp.Less.
func Ordered[T cmp.Ordered](s []T) {
	Slice(s, cmp.Less[T])
}

// IsSorted reports whether seq is non-decreasing under less.
func IsSorted[T any](seq Sequence[T], less func(a, b T) bool) bool {
	for i := seq.Len() - 1; i > 0; i-- {
		if less(seq.At(i), seq.At(i-1)) {
			return false
		}
	}
	return true
}
