package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// taskRunner runs best-effort side effects. Failures and panics are logged and
// never reach the caller. In detached mode the tasks run in order on a single
// goroutine whose context outlives the request. A positive timeout bounds each task.
type taskRunner struct {
	detach  bool
	timeout time.Duration
	wg      sync.WaitGroup
	log     *zap.Logger
}

func (r *taskRunner) run(ctx context.Context, orderID string, tasks ...task) {
	if !r.detach {
		r.runAll(ctx, orderID, tasks)
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runAll(ctx, orderID, tasks)
	}()
}

func (r *taskRunner) runAll(ctx context.Context, orderID string, tasks []task) {
	for _, t := range tasks {
		if err := r.runOne(ctx, t); err != nil {
			r.log.Warn("side effect failed",
				zap.String("order_id", orderID),
				zap.String("task", t.name),
				zap.Error(err),
			)
		}
	}
}

func (r *taskRunner) runOne(ctx context.Context, t task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return t.fn(ctx)
}

func (r *taskRunner) wait() {
	r.wg.Wait()
}
