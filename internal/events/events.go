// Package events provides a pub/sub bus for sort engine and bench notifications.
package events

import (
	"time"

	"leopard/internal/psort"
)

// EventType represents the type of event
type EventType string

const (
	// EventSortStarted is emitted when a sort is seeded
	EventSortStarted EventType = "sort_started"
	// EventSortCompleted is emitted when every worker has exited and the result is written back
	EventSortCompleted EventType = "sort_completed"
	// EventSortFailed is emitted when a worker panicked
	EventSortFailed EventType = "sort_failed"
	// EventStateChanged is emitted on every engine state transition
	EventStateChanged EventType = "state_changed"
	// EventTaskQueued is emitted when a task is pushed onto the queue
	EventTaskQueued EventType = "task_queued"
	// EventTaskSplit is emitted when a worker partitions a task into two children
	EventTaskSplit EventType = "task_split"
	// EventTaskSorted is emitted when a worker sorts a task without splitting it
	EventTaskSorted EventType = "task_sorted"
	// EventWorkerExited is emitted when a worker leaves its loop
	EventWorkerExited EventType = "worker_exited"
	// EventBenchRunCompleted is emitted after each bench run
	EventBenchRunCompleted EventType = "bench_run_completed"
)

// Event represents an engine or bench event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SortID    string    `json:"sort_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	State    string       `json:"state,omitempty"`
	Worker   *int         `json:"worker,omitempty"`
	Task     *psort.Task  `json:"task,omitempty"`
	Children []psort.Task `json:"children,omitempty"`
	Run      int          `json:"run,omitempty"`
	Elements int          `json:"elements,omitempty"`
	Duration string       `json:"duration,omitempty"`
	Error    string       `json:"error,omitempty"`
}

func newEvent(t EventType, sortID string, data EventData) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		SortID:    sortID,
		Data:      data,
	}
}

// NewStateEvent creates a state change event. Seeded, done and failed
// transitions map to the sort_started, sort_completed and sort_failed types.
func NewStateEvent(sortID string, s psort.State) Event {
	t := EventStateChanged
	switch s {
	case psort.StateSeeded:
		t = EventSortStarted
	case psort.StateDone:
		t = EventSortCompleted
	case psort.StateFailed:
		t = EventSortFailed
	}
	return newEvent(t, sortID, EventData{State: s.String()})
}

// NewTaskQueuedEvent creates a task queued event
func NewTaskQueuedEvent(sortID string, task psort.Task) Event {
	return newEvent(EventTaskQueued, sortID, EventData{Task: &task})
}

// NewTaskSplitEvent creates a task split event
func NewTaskSplitEvent(sortID string, worker int, parent, left, right psort.Task) Event {
	return newEvent(EventTaskSplit, sortID, EventData{
		Worker:   &worker,
		Task:     &parent,
		Children: []psort.Task{left, right},
	})
}

// NewTaskSortedEvent creates a task sorted event
func NewTaskSortedEvent(sortID string, worker int, task psort.Task) Event {
	return newEvent(EventTaskSorted, sortID, EventData{Worker: &worker, Task: &task})
}

// NewWorkerExitedEvent creates a worker exited event
func NewWorkerExitedEvent(sortID string, worker int) Event {
	return newEvent(EventWorkerExited, sortID, EventData{Worker: &worker})
}

// NewBenchRunEvent creates a bench run completed event
func NewBenchRunEvent(bench string, run, elements int, d time.Duration, err error) Event {
	data := EventData{
		Run:      run,
		Elements: elements,
		Duration: d.String(),
	}
	if err != nil {
		data.Error = err.Error()
	}
	return newEvent(EventBenchRunCompleted, bench, data)
}
