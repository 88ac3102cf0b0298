// Package retry runs an operation until it succeeds, fails fatally or runs
// out of attempts.
//
// [WithExponentialBackoff] retries with a growing delay; [WithFixedDelay]
// keeps the delay constant, which is what the control plane's spurious
// rejection workaround needs. Errors wrapped with [Fatal] stop the loop
// immediately, and running out of attempts yields an [ExhaustedError].
package retry
