package hcloud

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"golang.org/x/sync/errgroup"

	"github.com/imamik/vcdflow/internal/platform/controlplane"
)

// step starts the next part of a composite task and returns the actions it
// started. A step that returns no actions completed synchronously.
type step func(ctx context.Context) ([]*hcloud.Action, error)

// compositeTask runs its steps one after another; each step starts only once
// every action of the previous one has succeeded.
type compositeTask struct {
	mu      sync.Mutex
	snap    controlplane.Task
	targets []string
	steps   []step
	running []*hcloud.Action

	// finished holds the unix nano time the task became terminal, zero while
	// it runs. It is read without mu.
	finished atomic.Int64
}

// defaultTaskRetention is how long a finished task stays fetchable.
const defaultTaskRetention = 10 * time.Minute

// taskRegistry tracks the tasks of an Adapter. Finished tasks are dropped
// once they are older than retention.
type taskRegistry struct {
	mu        sync.Mutex
	tasks     map[string]*compositeTask
	retention time.Duration
	now       func() time.Time
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{
		tasks:     make(map[string]*compositeTask),
		retention: defaultTaskRetention,
		now:       time.Now,
	}
}

func (r *taskRegistry) add(t *compositeTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.tasks[t.snap.Locator] = t
}

// prune drops finished tasks past retention. Callers hold r.mu.
func (r *taskRegistry) prune() {
	cutoff := r.now().Add(-r.retention).UnixNano()
	for href, t := range r.tasks {
		if done := t.finished.Load(); done != 0 && done <= cutoff {
			delete(r.tasks, href)
		}
	}
}

func (r *taskRegistry) get(href string) *compositeTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[href]
}

// targeting returns the unfinished tasks acting on any of hrefs.
func (r *taskRegistry) targeting(hrefs ...string) []*compositeTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	var out []*compositeTask
	for _, t := range r.tasks {
		if t.finished.Load() != 0 {
			continue
		}
		for _, target := range t.targets {
			if contains(hrefs, target) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *compositeTask) snapshot() controlplane.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// start registers a task for op and runs its first step. Actions that were
// started before the task existed are passed in started. An error from the
// first step rejects the submission.
func (a *Adapter) start(ctx context.Context, op controlplane.OperationKind, targets []string, result string, started []*hcloud.Action, steps ...step) (*controlplane.Task, error) {
	t := &compositeTask{
		snap: controlplane.Task{
			Locator: a.hrefKey(pathTasks, uuid.NewString()),
			Kind:    string(op),
			Status:  controlplane.TaskRunning,
			Started: time.Now().UTC(),
			Result:  result,
		},
		targets: targets,
		steps:   steps,
		running: compact(started),
	}

	if len(t.running) == 0 && len(t.steps) > 0 {
		first := t.steps[0]
		t.steps = t.steps[1:]
		actions, err := first(ctx)
		if err != nil {
			return nil, classify(op, err)
		}
		t.running = compact(actions)
	}

	a.metrics.tasksAlive.Inc()
	a.tasks.add(t)

	// A failed refresh here leaves the task running; the next fetch retries.
	t.mu.Lock()
	_ = a.advance(ctx, t)
	snap := t.snap
	t.mu.Unlock()
	return &snap, nil
}

// advance refreshes the running actions of t and starts further steps while
// the previous ones have succeeded. Callers hold t.mu. A returned error means
// the state could not be observed; the task itself is unchanged.
func (a *Adapter) advance(ctx context.Context, t *compositeTask) error {
	for !t.snap.Status.Terminal() {
		if len(t.running) > 0 {
			fresh, err := a.refresh(ctx, t.running)
			if err != nil {
				return err
			}
			t.running = fresh
			if failed := firstFailed(fresh); failed != nil {
				a.metrics.recordAction(failed.Command, string(failed.Status))
				t.fail(fmt.Sprintf("%s: %s", failed.Command, actionMessage(failed)))
				a.finish(t)
				return nil
			}
			if anyRunning(fresh) {
				return nil
			}
			for _, act := range fresh {
				a.metrics.recordAction(act.Command, string(act.Status))
			}
			t.running = nil
		}

		if len(t.steps) == 0 {
			t.snap.Status = controlplane.TaskSuccess
			a.finish(t)
			return nil
		}

		next := t.steps[0]
		actions, err := next(ctx)
		switch {
		case err != nil && isResourceLocked(err):
			// The server is still busy with an earlier action.
			return nil
		case err != nil:
			t.steps = nil
			t.fail(err.Error())
			a.finish(t)
			return nil
		}
		t.steps = t.steps[1:]
		t.running = compact(actions)
	}
	return nil
}

func (a *Adapter) finish(t *compositeTask) {
	t.finished.Store(a.tasks.now().UnixNano())
	a.metrics.tasksAlive.Dec()
}

func (t *compositeTask) fail(msg string) {
	t.snap.Status = controlplane.TaskError
	t.snap.ErrorMessage = msg
}

// refresh re-reads actions, at most a.workers at a time.
func (a *Adapter) refresh(ctx context.Context, actions []*hcloud.Action) ([]*hcloud.Action, error) {
	fresh := make([]*hcloud.Action, len(actions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, act := range actions {
		if act.Status != hcloud.ActionStatusRunning {
			fresh[i] = act
			continue
		}
		g.Go(func() error {
			got, _, err := a.client.Action.GetByID(ctx, act.ID)
			if err != nil {
				return fmt.Errorf("get action %d: %w", act.ID, err)
			}
			if got == nil {
				return fmt.Errorf("action %d not found", act.ID)
			}
			fresh[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fresh, nil
}

// fetchTask returns the current state of a task, advancing it first.
func (a *Adapter) fetchTask(ctx context.Context, href string) (*controlplane.Task, error) {
	t := a.tasks.get(href)
	if t == nil {
		return nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := a.advance(ctx, t); err != nil {
		return nil, err
	}
	snap := t.snap
	return &snap, nil
}

// pending advances and returns the unfinished tasks acting on href.
func (a *Adapter) pending(ctx context.Context, href string) ([]*controlplane.Task, error) {
	var out []*controlplane.Task
	for _, t := range a.tasks.targeting(href) {
		t.mu.Lock()
		err := a.advance(ctx, t)
		snap := t.snap
		t.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if !snap.Status.Terminal() {
			out = append(out, &snap)
		}
	}
	return out, nil
}

func compact(actions []*hcloud.Action) []*hcloud.Action {
	out := actions[:0:0]
	for _, act := range actions {
		if act != nil {
			out = append(out, act)
		}
	}
	return out
}

func firstFailed(actions []*hcloud.Action) *hcloud.Action {
	for _, act := range actions {
		if act.Status == hcloud.ActionStatusError {
			return act
		}
	}
	return nil
}

func anyRunning(actions []*hcloud.Action) bool {
	for _, act := range actions {
		if act.Status == hcloud.ActionStatusRunning {
			return true
		}
	}
	return false
}

func actionMessage(act *hcloud.Action) string {
	parts := []string{}
	if act.ErrorMessage != "" {
		parts = append(parts, act.ErrorMessage)
	}
	if act.ErrorCode != "" {
		parts = append(parts, "("+act.ErrorCode+")")
	}
	if len(parts) == 0 {
		return "action failed"
	}
	return strings.Join(parts, " ")
}
