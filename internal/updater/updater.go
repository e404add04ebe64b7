// Package updater implements the mutation operators: each one applies a
// state change to the local store first, recomputes counters, notifies
// listeners, and then pushes the change to the server best-effort. A failed
// push queues a dirty mark for the next status sweep and never rolls back
// the local change. Operators are idempotent, running one twice converges on
// the same state.
package updater

import (
	"context"
	"log"
	"os"
	gosync "sync"
)

// Updatable is a single mutation ready to run.
type Updatable interface {
	Update(ctx context.Context) error
}

// Updater runs mutations asynchronously, invoking the callback when done.
type Updater struct {
	logger *log.Logger
	wg     gosync.WaitGroup
}

func New(logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Updater{logger: logger}
}

// Go runs the task on its own goroutine. done may be nil.
func (u *Updater) Go(ctx context.Context, task Updatable, done func(error)) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		err := task.Update(ctx)
		if err != nil {
			u.logger.Printf("update failed: %v", err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// Wait blocks until every task started with Go has finished.
func (u *Updater) Wait() {
	u.wg.Wait()
}
