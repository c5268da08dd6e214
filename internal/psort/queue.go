package psort

import (
	"sync"
	"sync/atomic"
)

// taskQueue は未処理タスクの共有スタックと未解決タスク数を保持する。
// キューの変更と終了判定はすべて mu の下で行い、変更のたびに Broadcast する。
type taskQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []Task

	// active は push 済みでまだ「直接ソート」か「分割」で解決されていないタスク数
	active atomic.Int64

	draining bool
	aborted  bool
	obs      Observer
}

func newTaskQueue(obs Observer) *taskQueue {
	if obs == nil {
		obs = NopObserver{}
	}
	q := &taskQueue{obs: obs}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push はタスクを追加し、待機中のワーカーを起こす
func (q *taskQueue) push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pushLocked(t)
	q.cond.Broadcast()
}

func (q *taskQueue) pushLocked(t Task) {
	q.tasks = append(q.tasks, t)
	q.active.Add(1)
	q.obs.TaskQueued(t)
}

// next はタスクを 1 つ取り出す。キューが空で未解決タスクが残っている間はブロックする。
// キューが空かつ未解決タスクが 0、または中断された場合は false を返す。
func (q *taskQueue) next(worker int) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && q.active.Load() > 0 && !q.aborted {
		q.cond.Wait()
	}

	if q.aborted {
		return Task{}, false
	}
	if q.doneLocked() {
		if !q.draining {
			q.draining = true
			q.obs.StateChanged(StateDraining)
		}
		return Task{}, false
	}

	// LIFO: 直近に積まれた子タスクから処理する
	n := len(q.tasks)
	t := q.tasks[n-1]
	q.tasks = q.tasks[:n-1]
	q.obs.TaskStarted(worker, t)
	return t, true
}

// sorted は直接ソートしたタスクを解決済みにする
func (q *taskQueue) sorted(worker int, t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.obs.TaskSorted(worker, t)
	q.active.Add(-1)
	q.cond.Broadcast()
}

// split は子タスクを積んでから親タスクを解決済みにする。
// 同じクリティカルセクション内で行うので、途中で完了と誤判定されることはない。
func (q *taskQueue) split(worker int, parent, left, right Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.obs.TaskSplit(worker, parent, left, right)
	q.pushLocked(left)
	q.pushLocked(right)
	q.active.Add(-1)
	q.cond.Broadcast()
}

// abort は全ワーカーを終了させる
func (q *taskQueue) abort() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.aborted = true
	q.cond.Broadcast()
}

func (q *taskQueue) exited(worker int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.obs.WorkerExited(worker)
}

func (q *taskQueue) setState(s State) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.obs.StateChanged(s)
}

// done はキューが空かつ未解決タスクが 0 のとき true を返す
func (q *taskQueue) done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.doneLocked()
}

func (q *taskQueue) doneLocked() bool {
	return len(q.tasks) == 0 && q.active.Load() == 0
}

// len は現在キューに積まれているタスク数を返す
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
