package handlers

import (
	"context"
	"fmt"
)

// Secret names under the configured prefix. The CI pipeline and the
// "manager" credential source read the same names back.
const (
	secretRegistryUsername = "registry-username"
	secretRegistryToken    = "registry-token"
	secretAccessKeyID      = "access-key-id"
	secretAccessKey        = "secret-access-key"
	secretRegion           = "region"
	secretSSHKey           = "ssh-private-key"
)

// SecretsCI collects the CI credential set interactively and pushes it to
// the external secret manager with create-or-update semantics.
//
// Sensitive values are read with echo disabled and are never printed or
// logged; progress output names each secret, never its value. The SSH key
// is prompted as a path and uploaded as file contents so the pipeline can
// reconstruct the key file.
func SecretsCI(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := newSecretWriter(ctx, cfg.Backend.Region, cfg.Backend.SecretsPrefix)
	if err != nil {
		return fmt.Errorf("failed to open secret manager: %w", err)
	}

	values := map[string]string{}

	prompts := []struct {
		name   string
		label  string
		secret bool
	}{
		{secretRegistryUsername, "Registry username", false},
		{secretRegistryToken, "Registry token", true},
		{secretAccessKeyID, "Cloud access key ID", false},
		{secretAccessKey, "Cloud secret access key", true},
		{secretRegion, "Cloud region", false},
	}
	for _, p := range prompts {
		value, err := promptValue(p.label, p.secret)
		if err != nil {
			return err
		}
		values[p.name] = value
	}

	keyPath, err := promptValue("SSH private key path", false)
	if err != nil {
		return err
	}
	keyData, err := readFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read SSH private key %s: %w", keyPath, err)
	}
	values[secretSSHKey] = string(keyData)

	// Stable order so repeated runs report identically.
	order := []string{
		secretRegistryUsername, secretRegistryToken,
		secretAccessKeyID, secretAccessKey,
		secretRegion, secretSSHKey,
	}
	for _, name := range order {
		if err := store.Put(ctx, name, values[name]); err != nil {
			return err
		}
		fmt.Printf("  ✓ %s/%s\n", cfg.Backend.SecretsPrefix, name)
	}

	fmt.Printf("\nCI credentials stored under %s/\n", cfg.Backend.SecretsPrefix)
	return nil
}
