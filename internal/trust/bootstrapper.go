// Package trust drives the certificate-signing handshake between the
// control node's certificate authority and the agent nodes.
//
// Fresh agents submit a certificate request to the control node when their
// bootstrap agent first runs. The bootstrapper signs outstanding requests
// and verifies each agent can complete a convergence test pass. An agent
// whose certificate is not yet signed fails that pass with a recognizable
// SSL warning rather than a hard error; that is expected on the first round
// and resolved by signing again. At most two sign rounds are issued.
package trust

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/sshexec"
)

const (
	listCommand = "sudo puppetserver ca list --all"
	signCommand = "sudo puppetserver ca sign --all"
	testCommand = "sudo puppet agent --test"

	maxSignRounds = 2
)

// Error reports agents left untrusted after the final sign round. It is
// degraded, not fatal: the pipeline continues and surfaces it for manual
// resolution.
type Error struct {
	Untrusted []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("nodes not trusted after %d sign rounds: %s",
		maxSignRounds, strings.Join(e.Untrusted, ", "))
}

// Status is the final trust state of one node.
type Status struct {
	Node   fleet.Node
	State  fleet.TrustState
	Detail string
}

// Report is the per-node outcome of one bootstrap run.
type Report struct {
	Statuses []Status
	Rounds   int
}

// AllSigned reports whether every agent reached the signed state.
func (r Report) AllSigned() bool {
	for _, s := range r.Statuses {
		if s.State != fleet.TrustSigned {
			return false
		}
	}
	return true
}

// Bootstrapper runs the handshake for one fleet.
type Bootstrapper struct {
	runner sshexec.Runner
	fl     fleet.Fleet
	settle time.Duration

	// sleep is swapped in tests to avoid real settle waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBootstrapper returns a Bootstrapper. settle is the wait before the
// first certificate query; bootstrap agents on new nodes start
// asynchronously and need time to submit their requests.
func NewBootstrapper(runner sshexec.Runner, fl fleet.Fleet, settle time.Duration) *Bootstrapper {
	return &Bootstrapper{
		runner: runner,
		fl:     fl,
		settle: settle,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Run performs the handshake and reports per-node trust state. The returned
// error is a *Error when agents remain untrusted; any other error means the
// control node itself was unreachable.
func (b *Bootstrapper) Run(ctx context.Context) (Report, error) {
	if err := b.sleep(ctx, b.settle); err != nil {
		return Report{}, err
	}

	report := Report{}
	trusted := map[string]bool{}

	for round := 1; round <= maxSignRounds; round++ {
		report.Rounds = round

		// Observed only; the outstanding request list is useful operator
		// context when a node never reaches signed.
		if _, err := b.runner.Execute(ctx, b.fl.Control.Address, listCommand); err != nil {
			return report, fmt.Errorf("failed to query certificate requests on control node: %w", err)
		}

		// Always issued, tolerant of "nothing to sign". Skipping it when the
		// request list looks empty races against agents still starting up.
		signRes, err := b.runner.Execute(ctx, b.fl.Control.Address, signCommand)
		if err != nil {
			return report, fmt.Errorf("failed to sign certificates on control node: %w", err)
		}
		if signRes.ExitCode != 0 && !nothingToSign(signRes) {
			return report, fmt.Errorf("certificate signing failed on control node: %s", strings.TrimSpace(signRes.Stderr))
		}

		allTrusted := true
		for _, node := range b.fl.Agents() {
			if trusted[node.Name()] {
				continue
			}
			res, err := b.runner.Execute(ctx, node.Address, testCommand)
			if err != nil {
				allTrusted = false
				continue
			}
			if isCertWarning(res) {
				allTrusted = false
				continue
			}
			trusted[node.Name()] = true
		}

		if allTrusted {
			break
		}
	}

	var untrusted []string
	for _, node := range b.fl.Agents() {
		status := Status{Node: node, State: fleet.TrustSigned}
		if !trusted[node.Name()] {
			status.State = fleet.TrustPending
			status.Detail = "certificate not signed; resolve manually on the control node"
			untrusted = append(untrusted, node.Name())
		}
		report.Statuses = append(report.Statuses, status)
	}

	if len(untrusted) > 0 {
		return report, &Error{Untrusted: untrusted}
	}
	return report, nil
}

// nothingToSign recognizes the CA's response when no requests are pending.
func nothingToSign(res sshexec.Result) bool {
	combined := res.Stdout + res.Stderr
	return strings.Contains(combined, "No certificates to sign") ||
		strings.Contains(combined, "no certificate requests")
}

// isCertWarning recognizes the agent-side failure of an unsigned node. The
// agent exits non-zero with an SSL verification complaint; anything else
// non-zero is a convergence problem, not a trust problem, and is settled
// later by the convergence stage.
func isCertWarning(res sshexec.Result) bool {
	if res.ExitCode == 0 {
		return false
	}
	combined := res.Stdout + res.Stderr
	for _, marker := range []string{
		"Unable to verify the SSL certificate",
		"certificate verify failed",
		"SSL_connect",
		"waiting for cert",
	} {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}
