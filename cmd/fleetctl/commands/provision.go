package commands

import (
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Provision returns the command that converges fleet infrastructure to the
// resource specification.
//
// The remote state backend (state bucket and lock table) is created on
// first use; re-running against existing infrastructure is a no-op apply.
func Provision() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision fleet infrastructure",
		Long: `Provision the fleet's cloud infrastructure.

Runs the declarative provisioner against the versioned resource
specification and prints the resulting node addresses. Safe to re-run:
matching infrastructure results in a no-op apply.

Examples:
  # Provision using fleet.yaml in the current directory
  fleetctl provision

  # Provision a specific environment
  fleetctl provision -c staging.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Provision(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (default: fleet.yaml)")

	return cmd
}
