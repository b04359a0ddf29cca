package handlers

import (
	"context"
	"fmt"

	"github.com/todofleet/fleetctl/internal/creds"
)

// Deploy distributes registry credentials, converges every node, starts the
// workload, and verifies health after a settle delay.
//
// credSource selects where the registry credentials come from: "prompt"
// asks interactively, "env" reads REGISTRY_USERNAME and REGISTRY_TOKEN,
// "manager" fetches them from the external secret manager under the
// configured prefix.
func Deploy(ctx context.Context, configPath, credSource string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := ensureKeyFile(cfg.SSH.KeyPath); err != nil {
		return err
	}

	source, err := credentialSource(ctx, cfg.Backend.Region, cfg.Backend.SecretsPrefix, credSource)
	if err != nil {
		return err
	}

	orch, err := newOrchestrator(ctx, cfg, source)
	if err != nil {
		return err
	}

	_, err = orch.Deploy(ctx)
	return err
}

// credentialSource maps the --creds flag to a credential source.
func credentialSource(ctx context.Context, region, prefix, name string) (creds.Source, error) {
	switch name {
	case "prompt":
		return creds.PromptSource{}, nil
	case "env":
		return creds.NewEnvSource(), nil
	case "manager":
		getter, err := newSecretGetter(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("failed to open secret manager: %w", err)
		}
		return creds.ManagerSource{Getter: getter, Prefix: prefix}, nil
	default:
		return nil, fmt.Errorf("unknown credential source %q (want prompt, env, or manager)", name)
	}
}
