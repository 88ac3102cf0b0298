// Package config defines the runtime configuration of vcdflow: which control
// plane backend to drive, poll intervals and deadlines, the compute-shape
// catalog and the optional journal, event bus and tracing outputs.
//
// Configuration is read from a YAML file with [LoadFile]. Timeouts can be
// overridden per process with VCDFLOW_TIMEOUT_* environment variables, see
// [LoadTimeouts].
package config
