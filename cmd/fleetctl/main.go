// Package main is the entry point for the fleetctl CLI.
//
// fleetctl deploys and operates the todo application fleet: it provisions
// the cloud infrastructure through Terraform, bootstraps trust between the
// configuration-management control node and its agents, distributes
// registry credentials, triggers convergence runs, and verifies application
// health across the fleet.
//
// Commands: provision, bootstrap, deploy, status, secrets, dev.
// Run fleetctl with no arguments on a terminal for the interactive menu.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/todofleet/fleetctl/cmd/fleetctl/commands"
	"github.com/todofleet/fleetctl/cmd/fleetctl/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// Interrupt cancels in-flight stages and tears down local child
	// processes only; remote nodes are never signalled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer handlers.CleanupLocalProcesses()

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		handlers.CleanupLocalProcesses()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
