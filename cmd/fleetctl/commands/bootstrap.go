package commands

import (
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Bootstrap returns the command that establishes trust between the control
// node and the agent nodes.
//
// Idempotent: a fully signed fleet reports all nodes trusted without extra
// sign rounds.
func Bootstrap() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap trust between the control node and agents",
		Long: `Run the certificate-signing handshake for the fleet.

Waits for the bootstrap agents on fresh nodes to submit their certificate
requests, signs them on the control node, and verifies each agent can
complete a convergence test pass. Nodes that fail to reach the signed
state after two rounds are reported for manual resolution; this is a
warning, not a failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Bootstrap(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (default: fleet.yaml)")

	return cmd
}
