// Package sim is an in-memory control plane.
//
// It behaves like an eventually consistent platform: submitted operations
// return a queued task, and tasks advance one step every time the platform is
// observed (any fetch). An operation's effect is applied when its task
// completes. Faults can be injected per operation kind to exercise error and
// retry paths.
//
// The CLI uses it as a dry-run backend; tests use it to drive whole workflows.
package sim
