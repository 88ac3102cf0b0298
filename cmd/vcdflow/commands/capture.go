package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
)

// Capture returns the capture command.
func Capture() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "capture MACHINE",
		Short: "Capture a machine's group as an image",
		Long: `Capture stops the group of a machine, snapshots it as a template and
publishes it in the first unpublished catalog. The group is redeployed and
reconnected afterwards, whether or not the capture succeeded.

Example:
  vcdflow capture /vApp/vm-7 --name golden-web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Capture(cmd.Context(), configPath, args[0], name, description, asJSON)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&name, "name", "n", "", "Image name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Image description")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
