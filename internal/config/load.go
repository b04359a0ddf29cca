package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory
// when no path is given.
const DefaultFile = "fleet.yaml"

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DeployRoot == "" && cfg.AppName != "" {
		cfg.DeployRoot = "/opt/" + cfg.AppName
	}
	if cfg.SSH.Port == 0 {
		cfg.SSH.Port = 22
	}
	if cfg.Terraform.VarFile == "" {
		cfg.Terraform.VarFile = "terraform.tfvars"
	}
	if cfg.Timing.BootstrapSettle == 0 {
		cfg.Timing.BootstrapSettle = 90 * time.Second
	}
	if cfg.Timing.DeploySettle == 0 {
		cfg.Timing.DeploySettle = 30 * time.Second
	}
	if cfg.Timing.ProbeTimeout == 0 {
		cfg.Timing.ProbeTimeout = 3 * time.Second
	}
	if cfg.Timing.CommandTimeout == 0 {
		cfg.Timing.CommandTimeout = 5 * time.Minute
	}
	if cfg.Health.FrontendPort == 0 {
		cfg.Health.FrontendPort = 3000
	}
	if cfg.Health.BackendPort == 0 {
		cfg.Health.BackendPort = 8080
	}
	if cfg.Backend.SecretsPrefix == "" && cfg.AppName != "" {
		cfg.Backend.SecretsPrefix = cfg.AppName + "/ci"
	}
}
