package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrNoChildren is returned when a group holds no machines.
	ErrNoChildren = errors.New("group has no machines")
	// ErrNoNetwork is returned when no network is available to bind machines to.
	ErrNoNetwork = errors.New("no network available")
	// ErrInvalidRequest is returned for requests that fail validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// NotFoundError reports a resource that could not be resolved.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// OperationError reports a task that ended in the Error state. Message is the
// text the control plane supplied.
type OperationError struct {
	Op      string
	Task    string
	Message string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s task %s failed", e.Op, e.Task)
	}
	return fmt.Sprintf("%s task %s failed: %s", e.Op, e.Task, e.Message)
}

// TimeoutError reports a wait that ran past its deadline. It is distinct from
// an OperationError: the remote operation may still complete.
type TimeoutError struct {
	Wait   string
	Target string
	Waited time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %v waiting for %s %s", e.Waited.Round(time.Millisecond), e.Wait, e.Target)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// waitError converts a context error ending a poll loop.
func waitError(wait, target string, started time.Time, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Wait: wait, Target: target, Waited: time.Since(started), Err: err}
	}
	return fmt.Errorf("waiting for %s %s: %w", wait, target, err)
}
