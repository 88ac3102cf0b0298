package provisioning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// EventSink receives structured workflow events. Implementations must not
// block the workflow for long.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// Event represents a structured workflow event.
type Event struct {
	Type      EventType         `json:"type"`
	Workflow  string            `json:"workflow"`
	RunID     string            `json:"runId"`
	Message   string            `json:"message"`
	Resource  string            `json:"resource,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// EventType represents the type of workflow event.
type EventType string

const (
	// EventWorkflowStarted indicates a workflow run has started.
	EventWorkflowStarted EventType = "workflow.started"
	// EventWorkflowCompleted indicates a workflow run completed successfully.
	EventWorkflowCompleted EventType = "workflow.completed"
	// EventWorkflowFailed indicates a workflow run failed.
	EventWorkflowFailed EventType = "workflow.failed"

	// EventResourceCreated indicates a resource was created.
	EventResourceCreated EventType = "resource.created"
	// EventResourceDeleted indicates a resource was deleted.
	EventResourceDeleted EventType = "resource.deleted"
	// EventRequestRejected indicates the control plane rejected a request
	// that will be resubmitted.
	EventRequestRejected EventType = "request.rejected"

	// EventCompensationFailed indicates an undo step failed.
	EventCompensationFailed EventType = "compensation.failed"
	// EventFinalizationFailed indicates a finalization step failed.
	EventFinalizationFailed EventType = "finalization.failed"

	// EventWarning indicates a condition worth surfacing that did not fail the
	// run.
	EventWarning EventType = "warning"
)

// LogSink writes events to a logr.Logger.
type LogSink struct {
	Log logr.Logger
}

// Emit implements EventSink.
func (s LogSink) Emit(_ context.Context, event Event) {
	kv := []any{"type", string(event.Type), "workflow", event.Workflow, "run", event.RunID}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	for _, k := range sortedKeys(event.Fields) {
		kv = append(kv, k, event.Fields[k])
	}
	s.Log.V(1).Info(event.Message, kv...)
}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

// Emit implements EventSink.
func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}

// FormatEvent renders an event as a single line.
func FormatEvent(event Event) string {
	var parts []string

	parts = append(parts, string(event.Type))
	if event.Workflow != "" {
		parts = append(parts, fmt.Sprintf("[%s]", event.Workflow))
	}
	if event.Resource != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", event.Resource))
	}
	parts = append(parts, event.Message)

	if len(event.Fields) > 0 {
		fieldParts := make([]string, 0, len(event.Fields))
		for _, k := range sortedKeys(event.Fields) {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, event.Fields[k]))
		}
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
