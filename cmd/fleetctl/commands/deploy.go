package commands

import (
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Deploy returns the command that deploys the application to an
// already-provisioned, trusted fleet.
func Deploy() *cobra.Command {
	var configPath string
	var credSource string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the application to the fleet",
		Long: `Deploy the application.

Distributes registry credentials to the app nodes, triggers a convergence
run on every node, starts the workload, and verifies health after a settle
delay. Node addresses are re-derived from the provisioner, so this stage
can resume a partially failed pipeline without re-provisioning.

Registry credentials come from --creds:
  prompt   ask interactively (default)
  env      read REGISTRY_USERNAME and REGISTRY_TOKEN
  manager  fetch from the external secret manager`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), configPath, credSource)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (default: fleet.yaml)")
	cmd.Flags().StringVar(&credSource, "creds", "prompt", "Registry credential source: prompt, env, or manager")

	return cmd
}
