package events

import "leopard/internal/psort"

// Publisher forwards a sort's task history to a Bus. Task-level events
// (queued, sorted, split, worker exited) are only published when Verbose is
// set, since a large sort produces thousands of them.
type Publisher struct {
	Bus     *Bus
	SortID  string
	Verbose bool
}

var _ psort.Observer = (*Publisher)(nil)

// NewPublisher creates a Publisher for one sort
func NewPublisher(bus *Bus, sortID string) *Publisher {
	return &Publisher{Bus: bus, SortID: sortID}
}

func (p *Publisher) StateChanged(s psort.State) {
	p.Bus.Publish(NewStateEvent(p.SortID, s))
}

func (p *Publisher) TaskQueued(t psort.Task) {
	if p.Verbose {
		p.Bus.Publish(NewTaskQueuedEvent(p.SortID, t))
	}
}

// TaskStarted is not published; TaskSorted and TaskSplit carry the worker.
func (p *Publisher) TaskStarted(int, psort.Task) {}

func (p *Publisher) TaskSorted(worker int, t psort.Task) {
	if p.Verbose {
		p.Bus.Publish(NewTaskSortedEvent(p.SortID, worker, t))
	}
}

func (p *Publisher) TaskSplit(worker int, parent, left, right psort.Task) {
	if p.Verbose {
		p.Bus.Publish(NewTaskSplitEvent(p.SortID, worker, parent, left, right))
	}
}

func (p *Publisher) WorkerExited(worker int) {
	if p.Verbose {
		p.Bus.Publish(NewWorkerExitedEvent(p.SortID, worker))
	}
}
