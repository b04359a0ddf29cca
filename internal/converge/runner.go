// Package converge triggers each node's configuration-convergence cycle and
// classifies the outcome.
//
// The agent's --test mode uses detailed exit codes: 0 means nothing to
// change, 2 means changes were applied, 4 and 6 report failures. A failing
// exit on a node's very first convergence is common — resources are being
// created for the first time and ordering hiccups self-heal on the agent's
// next cycle — so it is classified as a warning. The same exit on an
// already-initialized node is a real failure and halts that node.
//
// Whether a node is initialized is tracked explicitly with a marker file on
// the node, written after its first non-failing convergence.
package converge

import (
	"context"
	"fmt"
	"strings"

	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/sshexec"
)

// Outcome classifies one convergence run.
type Outcome string

const (
	Applied             Outcome = "applied"
	AppliedWithWarnings Outcome = "applied-with-warnings"
	Failed              Outcome = "failed"
)

// Error is a convergence failure on an initialized node. Fatal for that
// node; siblings in the same stage keep going.
type Error struct {
	Node     string
	ExitCode int
	Detail   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("convergence failed on %s (agent exit %d): %s", e.Node, e.ExitCode, e.Detail)
}

const agentCommand = "sudo puppet agent --test"

// Runner triggers convergence and the manual workload first-start.
type Runner struct {
	runner     sshexec.Runner
	deployRoot string
	markerPath string
}

// NewRunner returns a Runner. appName scopes the initialized-marker path.
func NewRunner(runner sshexec.Runner, appName, deployRoot string) *Runner {
	return &Runner{
		runner:     runner,
		deployRoot: deployRoot,
		markerPath: fmt.Sprintf("/var/lib/%s/.converged", appName),
	}
}

// Run triggers one convergence cycle on the node and classifies the result.
// The returned error is non-nil only for Failed outcomes and transport
// failures.
func (r *Runner) Run(ctx context.Context, node fleet.Node) (Outcome, error) {
	initialized, err := r.isInitialized(ctx, node)
	if err != nil {
		return Failed, fmt.Errorf("failed to check convergence marker on %s: %w", node.Name(), err)
	}

	res, err := r.runner.Execute(ctx, node.Address, agentCommand)
	if err != nil {
		return Failed, fmt.Errorf("convergence transport failure on %s: %w", node.Name(), err)
	}

	switch {
	case res.ExitCode == 0 || res.ExitCode == 2:
		if !initialized {
			r.writeMarker(ctx, node)
		}
		return Applied, nil
	case !initialized:
		// First-ever run: tolerated, marker written so a repeat of this
		// exit is no longer excused.
		r.writeMarker(ctx, node)
		return AppliedWithWarnings, nil
	default:
		return Failed, &Error{
			Node:     node.Name(),
			ExitCode: res.ExitCode,
			Detail:   lastLine(res.Stderr),
		}
	}
}

// FirstStart pulls and starts the workload once, immediately. The agent's
// own scheduled re-apply would do this eventually, but its interval is far
// too coarse for a first deployment.
func (r *Runner) FirstStart(ctx context.Context, node fleet.Node) error {
	command := fmt.Sprintf("cd %s && sudo docker compose pull --quiet && sudo docker compose up -d", r.deployRoot)
	res, err := r.runner.Execute(ctx, node.Address, command)
	if err != nil {
		return fmt.Errorf("workload start transport failure on %s: %w", node.Name(), err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("workload start failed on %s: %s", node.Name(), lastLine(res.Stderr))
	}
	return nil
}

func (r *Runner) isInitialized(ctx context.Context, node fleet.Node) (bool, error) {
	res, err := r.runner.Execute(ctx, node.Address, "test -f "+r.markerPath)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// writeMarker records that the node has been converged once. Best effort:
// a marker that failed to write only means the next failing run is excused
// again.
func (r *Runner) writeMarker(ctx context.Context, node fleet.Node) {
	command := fmt.Sprintf("sudo mkdir -p %s && sudo touch %s",
		pathDir(r.markerPath), r.markerPath)
	_, _ = r.runner.Execute(ctx, node.Address, command)
}

func pathDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// lastLine extracts the final non-empty line of output for error detail.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
