package playground

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskGroup runs a set of independent tasks and settles once all of them have
// returned. A task's failure is its own business: tasks report through
// session state, never through the group, so one failing task never cancels
// its siblings.
type TaskGroup struct {
	g errgroup.Group
}

// NewTaskGroup creates a group; limit > 0 caps the number of tasks running at once
func NewTaskGroup(limit int) *TaskGroup {
	tg := &TaskGroup{}
	if limit > 0 {
		tg.g.SetLimit(limit)
	}
	return tg
}

// Go starts fn, blocking while the group is at its limit
func (tg *TaskGroup) Go(fn func()) {
	tg.g.Go(func() error {
		fn()
		return nil
	})
}

// Wait blocks until every task has returned
func (tg *TaskGroup) Wait() {
	_ = tg.g.Wait()
}

// Run is a handle on a dispatched generation
type Run struct {
	done chan struct{}
}

func newRun() *Run {
	return &Run{done: make(chan struct{})}
}

func (r *Run) finish() {
	close(r.done)
}

// Done is closed once every request of the run is terminal
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run settles or ctx ends
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
