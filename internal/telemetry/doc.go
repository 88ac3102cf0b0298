// Package telemetry builds the logger and tracer provider shared by the
// command line and the orchestrator.
package telemetry
