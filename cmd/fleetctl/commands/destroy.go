package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Destroy returns the command that tears down fleet infrastructure.
func Destroy() *cobra.Command {
	var configPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the fleet infrastructure",
		Long: `Destroy every provisioned fleet resource.

Runs the declarative provisioner's destroy against the versioned resource
specification: all three nodes and their attached resources are removed.

WARNING: This operation is irreversible. Node disks are deleted with the
nodes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				confirmed, err := confirmDestroy()
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Destroy cancelled")
					return nil
				}
			}
			return handlers.Destroy(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// confirmDestroy asks the operator before irreversible teardown. Without a
// terminal there is nobody to ask; --force is required.
func confirmDestroy() (bool, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return false, fmt.Errorf("destroy requires confirmation; re-run with --force in non-interactive sessions")
	}

	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Destroy the fleet?").
			Description("All nodes and their disks will be deleted. This cannot be undone.").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation aborted: %w", err)
	}
	return confirmed, nil
}
