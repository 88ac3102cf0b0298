package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/vcdflow/cmd/vcdflow/handlers"
	"github.com/imamik/vcdflow/internal/provisioning"
)

// Launch returns the launch command.
//
// Launch instantiates a template, names and sizes its machines, binds them to
// a network and powers them on. When any step fails the partially created
// group is deleted unless launch.cleanup_on_failure is disabled.
func Launch() *cobra.Command {
	var (
		configPath string
		req        provisioning.Request
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "launch NAME",
		Short: "Launch a machine from a template",
		Long: `Launch instantiates a template and brings the new machine up.

The machine is sized either by --shape or by --cpu and --memory. Without
--network the first network of the control plane is used.

Example:
  vcdflow launch web-01 --template /vAppTemplate/vappTemplate-4 --shape 2048:2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return handlers.Launch(cmd.Context(), configPath, req, asJSON)
		},
	}

	configFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&req.TemplateID, "template", "t", "", "Template to instantiate (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Machine description")
	cmd.Flags().StringVarP(&req.ShapeID, "shape", "s", "", "Shape id from the shape catalog")
	cmd.Flags().IntVar(&req.CPU, "cpu", 0, "Number of CPUs when no shape is given")
	cmd.Flags().IntVar(&req.MemoryMB, "memory", 0, "Memory in MB when no shape is given")
	cmd.Flags().StringVar(&req.NetworkID, "network", "", "Network to bind the machine to")
	cmd.Flags().StringVar(&req.LocationID, "location", "", "Location passed to the control plane")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the machine record as JSON")
	_ = cmd.MarkFlagRequired("template")
	cmd.MarkFlagsMutuallyExclusive("shape", "cpu")
	cmd.MarkFlagsMutuallyExclusive("shape", "memory")

	return cmd
}
