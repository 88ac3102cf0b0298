package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
	"github.com/imamik/vcdflow/internal/journal"
	"github.com/imamik/vcdflow/internal/provisioning"
)

// Shapes returns the command listing the shape catalog.
func Shapes() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "shapes",
		Short: "List the compute shapes machines can be launched with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Shapes(cmd.Context(), configPath, asJSON)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the shapes as JSON")

	return cmd
}

// Probe returns the command checking access to the control plane.
func Probe() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check whether the credentials may use the control plane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Probe(cmd.Context(), configPath)
		},
	}

	configFlag(cmd, &configPath)

	return cmd
}

// History returns the command listing journaled workflow runs.
func History() *cobra.Command {
	var (
		configPath string
		filter     journal.Filter
		status     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded workflow runs",
		Long: `History lists the workflow runs recorded in the journal, newest first.

Requires journal.path to be set in the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter.Status = provisioning.RunStatus(status)
			return handlers.History(cmd.Context(), configPath, filter, asJSON)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&filter.Workflow, "workflow", "w", "", "Only runs of this workflow (launch, capture, terminate, ...)")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (running, succeeded, failed)")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the runs as JSON")

	return cmd
}

// Demo returns the command running every workflow against the simulator.
func Demo() *cobra.Command {
	var (
		configPath string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run launch, capture and terminate against the simulated control plane",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Demo(cmd.Context(), configPath, name)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVar(&name, "name", "demo", "Name of the demo machine")

	return cmd
}
