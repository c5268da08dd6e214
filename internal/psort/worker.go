package psort

import (
	"runtime/debug"

	"leopard/internal/logger"
)

// worker はタスクキューからタスクを取り出し、分割または直接ソートを繰り返す
type worker[T any] struct {
	id        int
	buf       []T
	less      func(a, b T) bool
	threshold int
	queue     *taskQueue
	log       *logger.Logger
}

// run はキューが空になり未解決タスクが 0 になるまでループする。
// less が panic した場合は WorkerFault を返し、他のワーカーも停止させる。
func (w *worker[T]) run() (err error) {
	var current Task
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerFault{
				Worker: w.id,
				Task:   current,
				Value:  r,
				Stack:  debug.Stack(),
			}
			w.queue.abort()
		}
		w.queue.exited(w.id)
	}()

	handled := 0
	for {
		t, ok := w.queue.next(w.id)
		if !ok {
			w.log.Debugf("worker %d exiting after %d tasks", w.id, handled)
			return nil
		}
		current = t
		w.process(t)
		handled++
	}
}

func (w *worker[T]) process(t Task) {
	n := t.Len()
	if n < w.threshold || n <= 1 {
		sortRange(w.buf, t.Low, t.High, w.less)
		w.queue.sorted(w.id, t)
		return
	}

	p := partition(w.buf, t.Low, t.High, w.less)
	w.queue.split(w.id, t, Task{Low: t.Low, High: p}, Task{Low: p + 1, High: t.High})
}
