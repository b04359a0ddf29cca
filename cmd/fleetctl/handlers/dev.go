package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/todofleet/fleetctl/internal/util/prerequisites"
)

// Local development runs against the application checkout in the working
// directory, laid out as backend/ and frontend/.
const (
	backendDir  = "backend"
	frontendDir = "frontend"
)

// DevRun starts the backend and the frontend dev server as local child
// processes with output streamed to the terminal.
//
// Both processes are registered with the process group, so an interrupt or
// a crash of either one tears both down. Remote nodes are never involved.
func DevRun(ctx context.Context) error {
	if err := requireTools(prerequisites.DevTools()); err != nil {
		return err
	}

	fmt.Println("Starting backend and frontend dev servers (Ctrl-C to stop)...")

	backendWait, err := procGroup.Start(
		backendDir+"/gradlew", []string{"-p", backendDir, "bootRun"},
		os.Stdout, os.Stderr,
	)
	if err != nil {
		return err
	}

	frontendWait, err := procGroup.Start(
		"npm", []string{"--prefix", frontendDir, "run", "dev"},
		os.Stdout, os.Stderr,
	)
	if err != nil {
		procGroup.Shutdown()
		return err
	}

	return awaitAll(ctx, backendWait, frontendWait)
}

// DevDocker runs the full stack locally with docker compose in the
// foreground.
func DevDocker(ctx context.Context) error {
	if err := requireTools(prerequisites.DevTools()); err != nil {
		return err
	}

	wait, err := procGroup.Start(
		"docker", []string{"compose", "up", "--build"},
		os.Stdout, os.Stderr,
	)
	if err != nil {
		return err
	}

	return awaitAll(ctx, wait)
}

// DevTest runs the application test suites locally, backend first, and
// propagates the first failure as the exit status.
func DevTest(ctx context.Context) error {
	if err := requireTools(prerequisites.DevTools()); err != nil {
		return err
	}

	suites := []struct {
		label string
		name  string
		args  []string
	}{
		{"backend", backendDir + "/gradlew", []string{"-p", backendDir, "test"}},
		{"frontend", "npm", []string{"--prefix", frontendDir, "test"}},
	}

	for _, suite := range suites {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Printf("Running %s tests...\n", suite.label)

		wait, err := procGroup.Start(suite.name, suite.args, os.Stdout, os.Stderr)
		if err != nil {
			return err
		}
		if err := awaitAll(ctx, wait); err != nil {
			return fmt.Errorf("%s tests failed: %w", suite.label, err)
		}
	}

	fmt.Println("All test suites passed")
	return nil
}

// awaitAll blocks until every process exits or the context is cancelled.
// Cancellation is a normal stop: children get terminated via the process
// group and the handler returns nil.
func awaitAll(ctx context.Context, waits ...func() error) error {
	errs := make(chan error, len(waits))
	for _, wait := range waits {
		go func(wait func() error) { errs <- wait() }(wait)
	}

	for remaining := len(waits); remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			procGroup.Shutdown()
			return nil
		case err := <-errs:
			if err != nil {
				procGroup.Shutdown()
				return err
			}
		}
	}
	return nil
}
