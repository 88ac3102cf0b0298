// Package async runs work off the calling goroutine and hands back a
// [Future] the caller can poll, block on or cancel.
//
// A Future has exactly two states: pending, and completed with either a
// value or an error. Workflows that take minutes (image capture) are
// started with [Go] so the initiating caller is never blocked.
package async
