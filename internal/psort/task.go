package psort

import "fmt"

// Task は未ソートの部分範囲 [Low, High]（両端を含む）を表す
type Task struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Len は範囲の要素数を返す
func (t Task) Len() int {
	if t.High < t.Low {
		return 0
	}
	return t.High - t.Low + 1
}

// Overlaps は 2 つの範囲が共通のインデックスを持つかを返す
func (t Task) Overlaps(o Task) bool {
	if t.Len() == 0 || o.Len() == 0 {
		return false
	}
	return t.Low <= o.High && o.Low <= t.High
}

func (t Task) String() string {
	return fmt.Sprintf("[%d,%d]", t.Low, t.High)
}

// State は 1 回のソート呼び出しの進行状態
type State int

const (
	StateIdle State = iota
	StateSeeded
	StateRunning
	StateDraining
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeded:
		return "seeded"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer receives the engine's task history.
//
// Every hook runs while the task queue lock is held, so an observer sees a
// linearized history of queue mutations and needs no locking of its own for
// state that only hooks touch. Hooks must return quickly and must not call
// back into the Sorter.
type Observer interface {
	StateChanged(s State)
	TaskQueued(t Task)
	TaskStarted(worker int, t Task)
	TaskSorted(worker int, t Task)
	TaskSplit(worker int, parent, left, right Task)
	WorkerExited(worker int)
}

// NopObserver ignores every hook. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(State)              {}
func (NopObserver) TaskQueued(Task)                 {}
func (NopObserver) TaskStarted(int, Task)           {}
func (NopObserver) TaskSorted(int, Task)            {}
func (NopObserver) TaskSplit(int, Task, Task, Task) {}
func (NopObserver) WorkerExited(int)                {}

type multiObserver []Observer

// Observers returns an Observer that forwards every hook to each non-nil
// observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return NopObserver{}
	case 1:
		return m[0]
	}
	return m
}

func (m multiObserver) StateChanged(s State) {
	for _, o := range m {
		o.StateChanged(s)
	}
}

func (m multiObserver) TaskQueued(t Task) {
	for _, o := range m {
		o.TaskQueued(t)
	}
}

func (m multiObserver) TaskStarted(worker int, t Task) {
	for _, o := range m {
		o.TaskStarted(worker, t)
	}
}

func (m multiObserver) TaskSorted(worker int, t Task) {
	for _, o := range m {
		o.TaskSorted(worker, t)
	}
}

func (m multiObserver) TaskSplit(worker int, parent, left, right Task) {
	for _, o := range m {
		o.TaskSplit(worker, parent, left, right)
	}
}

func (m multiObserver) WorkerExited(worker int) {
	for _, o := range m {
		o.WorkerExited(worker)
	}
}
