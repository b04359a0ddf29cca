// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and the interactive stage menu. Command execution
// is delegated to handler functions in the handlers package.
package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Root returns the root command for the fleetctl CLI.
//
// Invoked bare on a terminal it opens a numbered menu of the deployment
// stages; with a subcommand it behaves like any other CLI.
func Root() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "fleetctl",
		Short: "Deploy and operate the todo application fleet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return cmd.Help()
			}
			return runMenu(cmd, configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to fleet configuration file (default: fleet.yaml)")

	cmd.AddCommand(Provision())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Bootstrap())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Status())
	cmd.AddCommand(Secrets())
	cmd.AddCommand(Dev())
	cmd.AddCommand(Version())

	return cmd
}

// menu choices, in pipeline order.
const (
	choiceProvision = "provision"
	choiceBootstrap = "bootstrap-trust"
	choiceDeploy    = "deploy-app"
	choiceVerify    = "verify-status"
	choiceCISetup   = "setup-ci-credentials"
	choiceDevRun    = "local-dev-run"
	choiceDevDocker = "local-docker-run"
	choiceRunTests  = "run-tests"
)

// runMenu presents the stage selection and dispatches to the matching
// handler. Each selection maps to the same code path as its subcommand.
func runMenu(cmd *cobra.Command, configPath string) error {
	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("fleetctl").
			Description("Select a deployment stage").
			Options(
				huh.NewOption("1) Provision fleet infrastructure", choiceProvision),
				huh.NewOption("2) Bootstrap agent trust", choiceBootstrap),
				huh.NewOption("3) Deploy application", choiceDeploy),
				huh.NewOption("4) Verify fleet status", choiceVerify),
				huh.NewOption("5) Set up CI credentials", choiceCISetup),
				huh.NewOption("6) Run dev servers locally", choiceDevRun),
				huh.NewOption("7) Run the stack in Docker locally", choiceDevDocker),
				huh.NewOption("8) Run the application test suites", choiceRunTests),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		return fmt.Errorf("menu aborted: %w", err)
	}

	ctx := cmd.Context()
	switch choice {
	case choiceProvision:
		return handlers.Provision(ctx, configPath)
	case choiceBootstrap:
		return handlers.Bootstrap(ctx, configPath)
	case choiceDeploy:
		return handlers.Deploy(ctx, configPath, "prompt")
	case choiceVerify:
		return handlers.Status(ctx, configPath, false, false)
	case choiceCISetup:
		return handlers.SecretsCI(ctx, configPath)
	case choiceDevRun:
		return handlers.DevRun(ctx)
	case choiceDevDocker:
		return handlers.DevDocker(ctx)
	case choiceRunTests:
		return handlers.DevTest(ctx)
	default:
		return fmt.Errorf("unknown selection %q", choice)
	}
}
