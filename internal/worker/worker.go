package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"leopard/internal/logger"
)

// ErrPoolStopped はプールが起動していない、または停止中の場合に返る
var ErrPoolStopped = errors.New("worker pool is not running")

// Job はワーカーが実行するジョブを表す
type Job func(ctx context.Context) error

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers  int // ワーカー数（0でCPU数）
	QueueFactor int // キューサイズ = NumWorkers * QueueFactor
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:  0, // CPU数
		QueueFactor: 4,
	}
}

type request struct {
	ctx  context.Context
	job  Job
	done chan error // nil なら結果を捨てる
}

// Pool は同時に実行するジョブ数を NumWorkers に制限する
type Pool struct {
	numWorkers int
	jobs       chan request
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopping   atomic.Bool
	inFlight   atomic.Int64
	mu         sync.Mutex
	log        *logger.Logger
}

// NewPool は新しいワーカープールを作成する
// numWorkers が 0 以下の場合は CPU 数を使用
func NewPool(numWorkers int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する
func NewPoolWithConfig(config PoolConfig) *Pool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueFactor := config.QueueFactor
	if queueFactor <= 0 {
		queueFactor = DefaultPoolConfig().QueueFactor
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan request, numWorkers*queueFactor),
		log:        logger.Named("worker"),
	}
}

// SetLogger はロガーを差し替える
func (p *Pool) SetLogger(l *logger.Logger) {
	p.log = l.Named("worker")
}

// Start はワーカープールを起動する
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Infof("WorkerPool started with %d workers", p.numWorkers)
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.jobs:
			err := p.run(id, req)
			p.inFlight.Add(-1)
			if req.done != nil {
				req.done <- err
			} else if err != nil {
				p.log.Warnf("background job failed: %v", err)
			}
		}
	}
}

// run はジョブを実行し、panic をエラーに変換する
func (p *Pool) run(id int, req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked on worker %d: %v", id, r)
		}
	}()

	if err := req.ctx.Err(); err != nil {
		return err
	}
	return req.job(req.ctx)
}

// poolContext は起動中ならプールのコンテキストを返す
func (p *Pool) poolContext() (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.stopping.Load() {
		return nil, false
	}
	return p.ctx, true
}

// Do はジョブを送信し、実行が終わるまで待ってその結果を返す。
// ctx が先に終了した場合は ctx.Err() を返すが、実行中のジョブは止めない
func (p *Pool) Do(ctx context.Context, job Job) error {
	poolCtx, ok := p.poolContext()
	if !ok {
		return ErrPoolStopped
	}

	req := request{ctx: ctx, job: job, done: make(chan error, 1)}

	p.inFlight.Add(1)
	select {
	case p.jobs <- req:
	case <-ctx.Done():
		p.inFlight.Add(-1)
		return ctx.Err()
	case <-poolCtx.Done():
		p.inFlight.Add(-1)
		return ErrPoolStopped
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-poolCtx.Done():
		return ErrPoolStopped
	}
}

// Submit はジョブをプールに送信し、結果を待たずに戻る。
// キューに空きがない場合は false を返す
func (p *Pool) Submit(job Job) bool {
	poolCtx, ok := p.poolContext()
	if !ok {
		return false
	}

	p.inFlight.Add(1)
	select {
	case p.jobs <- request{ctx: poolCtx, job: job}:
		return true
	default:
		p.inFlight.Add(-1)
		return false
	}
}

// Stop はワーカープールを停止する。実行中のジョブの終了を待つ
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.stopping.Store(true)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	// 取り出されなかったジョブを捨てる
	for drained := false; !drained; {
		select {
		case <-p.jobs:
			p.inFlight.Add(-1)
		default:
			drained = true
		}
	}

	p.mu.Lock()
	p.started = false
	p.stopping.Store(false)
	p.mu.Unlock()

	p.log.Infof("WorkerPool stopped")
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// InFlight はキュー待ちと実行中のジョブ数を返す
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}
