// Package config loads and validates the fleet configuration file.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level fleet configuration, loaded from fleet.yaml.
type Config struct {
	// AppName names the deployed application; it scopes the deploy root
	// and the CI secrets prefix.
	AppName string `mapstructure:"app_name"`

	// DeployRoot is the directory on app nodes where the workload lives.
	DeployRoot string `mapstructure:"deploy_root"`

	SSH       SSHConfig       `mapstructure:"ssh"`
	Terraform TerraformConfig `mapstructure:"terraform"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Timing    TimingConfig    `mapstructure:"timing"`
	Health    HealthConfig    `mapstructure:"health"`
}

// SSHConfig configures the remote execution channel.
type SSHConfig struct {
	User    string `mapstructure:"user"`
	KeyPath string `mapstructure:"key_path"`
	Port    int    `mapstructure:"port"`
}

// TerraformConfig locates the infrastructure specification.
type TerraformConfig struct {
	// WorkDir is the directory holding the versioned resource specification.
	WorkDir string `mapstructure:"work_dir"`

	// VarFile is the variable file passed to plan/apply.
	VarFile string `mapstructure:"var_file"`
}

// BackendConfig describes the remote state backend bootstrapped before
// first use: an S3 bucket for state and a DynamoDB table for locking.
type BackendConfig struct {
	Bucket    string `mapstructure:"bucket"`
	LockTable string `mapstructure:"lock_table"`
	Region    string `mapstructure:"region"`

	// SecretsPrefix namespaces the CI credentials in Secrets Manager.
	SecretsPrefix string `mapstructure:"secrets_prefix"`
}

// RegistryConfig identifies the container registry the app nodes pull from.
type RegistryConfig struct {
	Server string `mapstructure:"server"`
}

// TimingConfig holds the settle delays and probe timeout.
type TimingConfig struct {
	// BootstrapSettle is the wait after provisioning before the first
	// certificate query; agents on fresh nodes start asynchronously.
	BootstrapSettle time.Duration `mapstructure:"bootstrap_settle"`

	// DeploySettle is the wait between workload first-start and health
	// verification.
	DeploySettle time.Duration `mapstructure:"deploy_settle"`

	// ProbeTimeout bounds a single health probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// CommandTimeout bounds a single remote command.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// HealthConfig holds the ports the application serves on.
type HealthConfig struct {
	FrontendPort int `mapstructure:"frontend_port"`
	BackendPort  int `mapstructure:"backend_port"`
}

// Validate checks the configuration for the fields every stage depends on.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name must be set")
	}
	if c.SSH.User == "" {
		return fmt.Errorf("ssh.user must be set")
	}
	if c.SSH.KeyPath == "" {
		return fmt.Errorf("ssh.key_path must be set")
	}
	if c.Terraform.WorkDir == "" {
		return fmt.Errorf("terraform.work_dir must be set")
	}
	if c.Backend.Bucket == "" {
		return fmt.Errorf("backend.bucket must be set")
	}
	if c.Backend.LockTable == "" {
		return fmt.Errorf("backend.lock_table must be set")
	}
	if c.Backend.Region == "" {
		return fmt.Errorf("backend.region must be set")
	}
	if c.Registry.Server == "" {
		return fmt.Errorf("registry.server must be set")
	}
	return nil
}
