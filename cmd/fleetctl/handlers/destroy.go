package handlers

import (
	"context"
	"fmt"

	"github.com/todofleet/fleetctl/internal/config"
	"github.com/todofleet/fleetctl/internal/provision"
	"github.com/todofleet/fleetctl/internal/util/prerequisites"
)

// infraDestroyer tears down provisioned infrastructure.
type infraDestroyer interface {
	Destroy(ctx context.Context) error
}

// newDestroyer creates the destroy provisioner; replaced in tests.
var newDestroyer = func(cfg *config.Config) infraDestroyer {
	return provision.New(cfg.Terraform.WorkDir, cfg.Terraform.VarFile)
}

// Destroy tears down every provisioned fleet resource through the
// declarative provisioner. Nodes are destroyed with their disks; nothing is
// recoverable afterwards.
func Destroy(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := requireTools(prerequisites.ProvisionTools()); err != nil {
		return err
	}

	fmt.Printf("Destroying fleet infrastructure for %s...\n", cfg.AppName)

	if err := newDestroyer(cfg).Destroy(ctx); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Printf("Fleet %s destroyed\n", cfg.AppName)
	return nil
}
