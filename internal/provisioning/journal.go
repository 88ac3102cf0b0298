package provisioning

import (
	"context"
	"time"
)

// RunStatus is the state of a recorded workflow run.
type RunStatus string

// Run states.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the journal record of one workflow execution.
type Run struct {
	ID                 string    `json:"id"`
	Workflow           string    `json:"workflow"`
	Target             string    `json:"target"`
	Status             RunStatus `json:"status"`
	Result             string    `json:"result,omitempty"`
	Error              string    `json:"error,omitempty"`
	CompensationErrors []string  `json:"compensationErrors,omitempty"`
	FinalizationErrors []string  `json:"finalizationErrors,omitempty"`
	Started            time.Time `json:"started"`
	Finished           time.Time `json:"finished,omitempty"`
}

// RunRecorder persists run records. Record is called when a run starts and
// again when it ends, with the same ID.
type RunRecorder interface {
	Record(ctx context.Context, run Run) error
}
