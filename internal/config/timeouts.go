package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds poll intervals, retry bounds and deadlines of the workflows.
// A zero deadline disables it.
type Timeouts struct {
	TaskPollInterval     time.Duration `yaml:"task_poll_interval" validate:"gt=0"`     // Sleep between task re-fetches
	IdleInterval         time.Duration `yaml:"idle_interval" validate:"gt=0"`          // Sleep between busy observations
	MaterializeInterval  time.Duration `yaml:"materialize_interval" validate:"gt=0"`   // Sleep while a new group is unresolved
	UndeployPollInterval time.Duration `yaml:"undeploy_poll_interval" validate:"gt=0"` // Sleep while a machine is still deployed
	DeleteRetryDelay     time.Duration `yaml:"delete_retry_delay" validate:"gt=0"`     // Delay between rejected group deletions
	DeleteRetryMax       int           `yaml:"delete_retry_max" validate:"gte=1"`      // Maximum group deletion attempts
	TaskTimeout          time.Duration `yaml:"task_timeout" validate:"gte=0"`          // Deadline for one task wait
	IdleTimeout          time.Duration `yaml:"idle_timeout" validate:"gte=0"`          // Deadline for one idle wait
	FinalizeTimeout      time.Duration `yaml:"finalize_timeout" validate:"gte=0"`      // Deadline for capture finalization
}

// DefaultTimeouts returns the built-in timeouts.
func DefaultTimeouts() *Timeouts {
	return &Timeouts{
		TaskPollInterval:     5 * time.Second,
		IdleInterval:         1500 * time.Millisecond,
		MaterializeInterval:  5 * time.Second,
		UndeployPollInterval: 5 * time.Second,
		DeleteRetryDelay:     5 * time.Second,
		DeleteRetryMax:       120,
		FinalizeTimeout:      30 * time.Minute,
	}
}

// LoadTimeouts returns the defaults overridden by environment variables.
// If an environment variable is not set or invalid, the default is kept.
//
// Environment Variables:
//   - VCDFLOW_TIMEOUT_TASK_POLL (default: 5s)
//   - VCDFLOW_TIMEOUT_IDLE_POLL (default: 1.5s)
//   - VCDFLOW_TIMEOUT_MATERIALIZE_POLL (default: 5s)
//   - VCDFLOW_TIMEOUT_UNDEPLOY_POLL (default: 5s)
//   - VCDFLOW_TIMEOUT_DELETE_RETRY_DELAY (default: 5s)
//   - VCDFLOW_TIMEOUT_DELETE_RETRY_MAX (default: 120)
//   - VCDFLOW_TIMEOUT_TASK (default: none)
//   - VCDFLOW_TIMEOUT_IDLE (default: none)
//   - VCDFLOW_TIMEOUT_FINALIZE (default: 30m)
func LoadTimeouts() *Timeouts {
	t := DefaultTimeouts()
	t.ApplyEnv()
	return t
}

// ApplyEnv overrides t with any VCDFLOW_TIMEOUT_* variables that are set.
func (t *Timeouts) ApplyEnv() {
	t.TaskPollInterval = parseDuration("VCDFLOW_TIMEOUT_TASK_POLL", t.TaskPollInterval)
	t.IdleInterval = parseDuration("VCDFLOW_TIMEOUT_IDLE_POLL", t.IdleInterval)
	t.MaterializeInterval = parseDuration("VCDFLOW_TIMEOUT_MATERIALIZE_POLL", t.MaterializeInterval)
	t.UndeployPollInterval = parseDuration("VCDFLOW_TIMEOUT_UNDEPLOY_POLL", t.UndeployPollInterval)
	t.DeleteRetryDelay = parseDuration("VCDFLOW_TIMEOUT_DELETE_RETRY_DELAY", t.DeleteRetryDelay)
	t.DeleteRetryMax = parseInt("VCDFLOW_TIMEOUT_DELETE_RETRY_MAX", t.DeleteRetryMax)
	t.TaskTimeout = parseDuration("VCDFLOW_TIMEOUT_TASK", t.TaskTimeout)
	t.IdleTimeout = parseDuration("VCDFLOW_TIMEOUT_IDLE", t.IdleTimeout)
	t.FinalizeTimeout = parseDuration("VCDFLOW_TIMEOUT_FINALIZE", t.FinalizeTimeout)
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
