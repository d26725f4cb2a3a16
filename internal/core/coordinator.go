package core

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Coordinator runs submitted functions one at a time on a single
// goroutine. All mutations of host workspace state go through it.
type Coordinator struct {
	tasks     chan coordinatorTask
	done      chan struct{}
	closeOnce sync.Once
}

type coordinatorTask struct {
	fn     func() error
	result chan error
}

func NewCoordinator() *Coordinator {
	c := &Coordinator{
		tasks: make(chan coordinatorTask),
		done:  make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	for {
		select {
		case task := <-c.tasks:
			task.result <- task.fn()
		case <-c.done:
			return
		}
	}
}

// Run waits for fn to execute on the coordinator and returns its error.
// Cancellation is honoured until fn has been accepted; once accepted, fn
// runs to completion.
func (c *Coordinator) Run(ctx context.Context, fn func() error) error {
	select {
	case <-c.done:
		return errCoordinatorClosed()
	default:
	}
	task := coordinatorTask{fn: fn, result: make(chan error, 1)}
	select {
	case c.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errCoordinatorClosed()
	}
	return <-task.result
}

// Close stops the coordinator. Pending Run calls fail.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func errCoordinatorClosed() error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("coordinator is closed")
}
