package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
)

// Power returns the parent command for power operations.
func Power() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Change the power state of a machine",
	}

	cmd.AddCommand(powerAction(handlers.PowerOn, "Power a machine on"))
	cmd.AddCommand(powerAction(handlers.PowerOff, "Power a machine off"))
	cmd.AddCommand(powerAction(handlers.PowerReboot, "Reboot a running machine"))

	return cmd
}

func powerAction(action, short string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   action + " MACHINE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Power(cmd.Context(), configPath, action, args[0])
		},
	}

	configFlag(cmd, &configPath)

	return cmd
}
