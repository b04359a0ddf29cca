package handlers

import (
	"context"
	"errors"

	"github.com/todofleet/fleetctl/internal/creds"
	"github.com/todofleet/fleetctl/internal/trust"
)

// Bootstrap runs the certificate handshake that establishes trust between
// the control node and the app nodes.
//
// Node addresses are re-derived from the provisioner, so this stage can be
// re-run on its own after a partial failure. Nodes still unsigned after the
// final round leave the fleet degraded: the condition is reported but the
// command exits zero, because the operator can re-run this stage once the
// stragglers come up.
func Bootstrap(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := ensureKeyFile(cfg.SSH.KeyPath); err != nil {
		return err
	}

	orch, err := newOrchestrator(ctx, cfg, creds.PromptSource{})
	if err != nil {
		return err
	}

	_, err = orch.BootstrapTrust(ctx)
	var trustErr *trust.Error
	if errors.As(err, &trustErr) {
		// Degraded, not fatal; the report has already been printed.
		return nil
	}
	return err
}
