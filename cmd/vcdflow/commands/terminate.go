package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
)

// Terminate returns the terminate command.
func Terminate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "terminate MACHINE",
		Short: "Terminate a machine",
		Long: `Terminate powers off and deletes a machine. When it is the last machine of
its group the group is deleted too.

WARNING: This operation is irreversible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Terminate(cmd.Context(), configPath, args[0])
		},
	}

	configFlag(cmd, &configPath)

	return cmd
}
