package handlers

import (
	"context"

	"github.com/todofleet/fleetctl/internal/creds"
	"github.com/todofleet/fleetctl/internal/util/prerequisites"
)

// Provision converges fleet infrastructure to the versioned resource
// specification.
//
// The workflow:
//  1. Loads and validates the fleet configuration
//  2. Verifies the terraform binary and the SSH private key are present
//  3. Ensures the remote state backend (bucket and lock table) exists
//  4. Applies the resource specification and reads back node addresses
//
// Any provisioning failure is fatal: downstream stages have no valid input
// without the three node addresses.
func Provision(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := requireTools(prerequisites.ProvisionTools()); err != nil {
		return err
	}
	if err := ensureKeyFile(cfg.SSH.KeyPath); err != nil {
		return err
	}

	orch, err := newOrchestrator(ctx, cfg, creds.PromptSource{})
	if err != nil {
		return err
	}

	_, err = orch.Provision(ctx)
	return err
}
