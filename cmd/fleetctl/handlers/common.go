// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/todofleet/fleetctl/internal/config"
	"github.com/todofleet/fleetctl/internal/converge"
	"github.com/todofleet/fleetctl/internal/creds"
	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/health"
	"github.com/todofleet/fleetctl/internal/localproc"
	"github.com/todofleet/fleetctl/internal/pipeline"
	"github.com/todofleet/fleetctl/internal/provision"
	"github.com/todofleet/fleetctl/internal/secretstore"
	"github.com/todofleet/fleetctl/internal/sshexec"
	"github.com/todofleet/fleetctl/internal/trust"
	"github.com/todofleet/fleetctl/internal/ui"
	"github.com/todofleet/fleetctl/internal/util/prerequisites"
)

// stageRunner is the pipeline surface the handlers drive. Matches
// pipeline.Orchestrator.
type stageRunner interface {
	Provision(ctx context.Context) (fleet.Fleet, error)
	BootstrapTrust(ctx context.Context) (trust.Report, error)
	Deploy(ctx context.Context) (*fleet.Session, error)
	VerifyStatus(ctx context.Context) ([]health.Report, error)
}

// secretWriter is the secret store surface the CI setup uses.
type secretWriter interface {
	Put(ctx context.Context, name, value string) error
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// checkTools runs prerequisite checks.
	checkTools = prerequisites.Check

	// ensureKeyFile verifies the SSH private key before remote stages.
	ensureKeyFile = prerequisites.EnsureKeyFile

	// promptValue reads one value from the terminal.
	promptValue = creds.PromptValue

	// readFile reads a local file (for the SSH key upload).
	readFile = os.ReadFile

	// newOrchestrator wires the real pipeline.
	newOrchestrator = func(ctx context.Context, cfg *config.Config, source creds.Source) (stageRunner, error) {
		return buildOrchestrator(ctx, cfg, source)
	}

	// newSecretWriter opens the external secret manager for writing.
	newSecretWriter = func(ctx context.Context, region, prefix string) (secretWriter, error) {
		store, err := secretstore.New(ctx, region, prefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	// newSecretGetter opens the external secret manager for reading. The
	// store carries no prefix of its own; callers pass fully qualified
	// names so read and write paths agree on naming.
	newSecretGetter = func(ctx context.Context, region string) (creds.SecretGetter, error) {
		store, err := secretstore.New(ctx, region, "")
		if err != nil {
			return nil, err
		}
		return store, nil
	}
)

// procGroup tracks local background processes spawned by the dev commands
// so main can terminate them on exit or interrupt.
var procGroup = localproc.NewGroup()

// CleanupLocalProcesses stops every locally spawned child process. Remote
// nodes are never touched.
func CleanupLocalProcesses() {
	procGroup.Shutdown()
}

// loadConfig loads and validates the fleet configuration. If configPath is
// empty, it looks for fleet.yaml in the current directory.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.DefaultFile
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}
	return cfg, nil
}

// buildOrchestrator constructs the production pipeline: SSH runner, state
// backend, provisioner, trust bootstrapper, credential distributor,
// convergence runner, and health verifier, all from the loaded config.
func buildOrchestrator(ctx context.Context, cfg *config.Config, source creds.Source) (*pipeline.Orchestrator, error) {
	runner, err := sshexec.NewClient(sshexec.Config{
		User:           cfg.SSH.User,
		KeyPath:        cfg.SSH.KeyPath,
		Port:           cfg.SSH.Port,
		CommandTimeout: cfg.Timing.CommandTimeout,
	})
	if err != nil {
		return nil, err
	}

	backend, err := provision.NewBackend(ctx, cfg.Backend)
	if err != nil {
		return nil, err
	}

	newTrust := func(fl fleet.Fleet) pipeline.TrustRunner {
		return trust.NewBootstrapper(runner, fl, cfg.Timing.BootstrapSettle)
	}

	return pipeline.New(
		cfg,
		ui.New(nil),
		provision.New(cfg.Terraform.WorkDir, cfg.Terraform.VarFile),
		backend,
		newTrust,
		creds.NewDistributor(runner, cfg.Registry.Server, cfg.DeployRoot),
		source,
		converge.NewRunner(runner, cfg.AppName, cfg.DeployRoot),
		health.NewVerifier(cfg.Timing.ProbeTimeout),
	), nil
}

// requireTools fails with every missing required tool named, before any
// remote call is attempted.
func requireTools(tools []prerequisites.Tool) error {
	results := checkTools(tools)
	if results.HasErrors() {
		return fmt.Errorf("prerequisites check failed:\n%s", results.ErrorMessage())
	}
	return nil
}
