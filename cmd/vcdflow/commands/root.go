// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse arguments and flags and delegate execution to the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the vcdflow CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vcdflow",
		Short:         "Launch, capture and tear down machines on a task-based control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Workflows
	cmd.AddCommand(Launch())
	cmd.AddCommand(Capture())
	cmd.AddCommand(Terminate())
	cmd.AddCommand(Power())
	cmd.AddCommand(Image())

	// Inspection and utilities
	cmd.AddCommand(Shapes())
	cmd.AddCommand(Probe())
	cmd.AddCommand(History())
	cmd.AddCommand(Demo())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// configFlag binds the --config flag shared by every command that talks to
// the control plane.
func configFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "Path to configuration file (defaults to the simulated backend)")
}
