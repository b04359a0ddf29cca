package commands

import (
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Secrets returns the parent command for secret management.
func Secrets() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage deployment secrets",
	}

	cmd.AddCommand(secretsCI())

	return cmd
}

// secretsCI pushes the CI credential set to the external secret manager.
// Values are prompted without echo and never printed.
func secretsCI() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Push CI credentials to the secret manager",
		Long: `Push the CI credential set to the external secret manager.

Prompts for the registry username and token, the cloud access key, secret
key and region, and the path to the SSH private key. Values are read
without echo and stored under the configured prefix with create-or-update
semantics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.SecretsCI(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (default: fleet.yaml)")

	return cmd
}
