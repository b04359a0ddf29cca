package commands

import (
	"github.com/spf13/cobra"

	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Dev returns the parent command for local development workflows. These
// run entirely on the operator's machine; the fleet is never touched.
func Dev() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the application locally",
	}

	cmd.AddCommand(devRun())
	cmd.AddCommand(devDocker())
	cmd.AddCommand(devTest())

	return cmd
}

func devRun() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the frontend and backend dev servers",
		Long: `Start the backend and the frontend dev server as local child
processes with their logs streamed to the terminal. Ctrl-C stops both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DevRun(cmd.Context())
		},
	}
}

func devDocker() *cobra.Command {
	return &cobra.Command{
		Use:   "docker",
		Short: "Run the full stack in local Docker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DevDocker(cmd.Context())
		},
	}
}

func devTest() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the application test suites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DevTest(cmd.Context())
		},
	}
}
