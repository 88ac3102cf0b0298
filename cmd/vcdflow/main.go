// Package main is the entry point for the vcdflow CLI.
//
// vcdflow drives an asynchronous, task-based infrastructure control plane:
// it launches machines from templates, captures them as images, changes their
// power state and tears them down, waiting on every control-plane task and
// unwinding partial work when a workflow fails.
//
// For detailed usage information, run:
//
//	vcdflow --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/vcdflow/cmd/vcdflow/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
