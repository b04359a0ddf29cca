package creds

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/sshexec"
)

// DistributionError is fatal for the affected node only; sibling nodes in
// the same stage keep going. Its message never contains secret values.
type DistributionError struct {
	Node   string
	Reason string
	Err    error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("credential distribution failed on %s: %s", e.Node, e.Reason)
}

func (e *DistributionError) Unwrap() error { return e.Err }

// Distributor pushes registry credentials and deployment secrets to nodes.
type Distributor struct {
	runner     sshexec.Runner
	registry   string
	deployRoot string
}

// NewDistributor returns a Distributor for the given registry server and
// per-node deployment root.
func NewDistributor(runner sshexec.Runner, registry, deployRoot string) *Distributor {
	return &Distributor{runner: runner, registry: registry, deployRoot: deployRoot}
}

// Distribute authenticates the node's registry access and writes the
// environment file under the deployment root. A transport failure is
// retried once; an authentication or permission failure is fatal for the
// node.
func (d *Distributor) Distribute(ctx context.Context, node fleet.Node, c Credentials, secrets map[string]string) error {
	if err := d.registryLogin(ctx, node, c); err != nil {
		return err
	}
	return d.writeEnvFile(ctx, node, c, secrets)
}

func (d *Distributor) registryLogin(ctx context.Context, node fleet.Node, c Credentials) error {
	// The token travels on stdin of the remote docker process, never in
	// argv, never in any output we keep.
	command := fmt.Sprintf("printf '%%s' %s | docker login %s --username %s --password-stdin",
		shellQuote(c.Token), shellQuote(d.registry), shellQuote(c.Username))

	res, err := d.executeWithRetry(ctx, node, command)
	if err != nil {
		return &DistributionError{Node: node.Name(), Reason: "registry login transport failure", Err: err}
	}
	if res.ExitCode != 0 {
		reason := "registry login failed"
		if isAuthRejected(res) {
			reason = "registry rejected the credentials"
		}
		return &DistributionError{Node: node.Name(), Reason: reason}
	}
	return nil
}

func (d *Distributor) writeEnvFile(ctx context.Context, node fleet.Node, c Credentials, secrets map[string]string) error {
	entries := map[string]string{
		"REGISTRY_SERVER":   d.registry,
		"REGISTRY_USERNAME": c.Username,
		"REGISTRY_TOKEN":    c.Token,
	}
	for k, v := range secrets {
		entries[k] = v
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, entries[k])
	}

	// Quoted heredoc delimiter prevents any expansion of secret content;
	// umask keeps the file unreadable to anything but the deploy user.
	command := fmt.Sprintf("sudo mkdir -p %[1]s && sudo sh -c 'umask 077; cat > %[1]s/.env' <<'FLEETEOF'\n%sFLEETEOF",
		shellQuote(d.deployRoot), b.String())

	res, err := d.executeWithRetry(ctx, node, command)
	if err != nil {
		return &DistributionError{Node: node.Name(), Reason: "secret file write transport failure", Err: err}
	}
	if res.ExitCode != 0 {
		reason := "secret file write failed"
		if strings.Contains(res.Stderr, "Permission denied") {
			reason = "secret file write permission denied"
		}
		return &DistributionError{Node: node.Name(), Reason: reason}
	}
	return nil
}

// executeWithRetry retries exactly once on a transport error. Command
// results (even failing ones) are returned to the caller for
// classification.
func (d *Distributor) executeWithRetry(ctx context.Context, node fleet.Node, command string) (sshexec.Result, error) {
	res, err := d.runner.Execute(ctx, node.Address, command)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return sshexec.Result{}, err
	}
	return d.runner.Execute(ctx, node.Address, command)
}

// isAuthRejected recognizes the registry's credential rejection.
func isAuthRejected(res sshexec.Result) bool {
	combined := res.Stdout + res.Stderr
	return strings.Contains(combined, "unauthorized") ||
		strings.Contains(combined, "incorrect username or password") ||
		strings.Contains(combined, "authentication required")
}

// shellQuote single-quotes a value for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
