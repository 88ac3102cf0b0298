package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
)

// Image returns the parent command for managing captured images.
func Image() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage captured images",
	}

	cmd.AddCommand(RemoveImage())

	return cmd
}

// RemoveImage returns the command that deletes a captured image.
func RemoveImage() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "rm IMAGE",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a captured image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.RemoveImage(cmd.Context(), configPath, args[0])
		},
	}

	configFlag(cmd, &configPath)

	return cmd
}
