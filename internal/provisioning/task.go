package provisioning

import (
	"context"
	"time"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// AwaitTask blocks until task reaches a terminal state.
//
// A nil task stands for an operation that completed synchronously. The task
// is re-fetched through a new session every TaskPollInterval; failed
// re-fetches are logged and the loop carries on with the last snapshot. A task
// ending in Error yields an *OperationError with the remote message. When ctx
// or TaskTimeout expires first the result is a *TimeoutError.
func (o *Orchestrator) AwaitTask(ctx context.Context, task *controlplane.Task) error {
	if task == nil {
		return nil
	}

	ctx, cancel := withOptionalTimeout(ctx, o.timeouts.TaskTimeout)
	defer cancel()

	log := o.logger(ctx).WithValues("task", task.Locator, "operation", task.Kind)
	started := time.Now()
	current := task

	for current.Pending() {
		if err := sleep(ctx, o.timeouts.TaskPollInterval); err != nil {
			o.metrics.recordTaskWait(task.Kind, "timeout", time.Since(started).Seconds())
			return waitError("task", task.Locator, started, err)
		}

		fresh, err := withClient(ctx, o, func(c controlplane.Client) (*controlplane.Task, error) {
			return c.FetchTask(ctx, current.Locator)
		})
		if err != nil {
			if ctx.Err() != nil {
				o.metrics.recordTaskWait(task.Kind, "timeout", time.Since(started).Seconds())
				return waitError("task", task.Locator, started, ctx.Err())
			}
			log.Info("Task re-fetch failed, still waiting", "error", err.Error())
			o.metrics.recordTransient("task")
			continue
		}
		if fresh != nil {
			current = fresh
		}
	}

	elapsed := time.Since(started)
	if current.Status == controlplane.TaskError {
		o.metrics.recordTaskWait(task.Kind, "error", elapsed.Seconds())
		return &OperationError{Op: current.Kind, Task: current.Locator, Message: current.ErrorMessage}
	}
	o.metrics.recordTaskWait(task.Kind, "success", elapsed.Seconds())
	log.V(1).Info("Task completed", "duration", elapsed.Round(time.Millisecond).String())
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withOptionalTimeout applies d to ctx unless d is zero.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
