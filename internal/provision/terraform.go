// Package provision wraps the external declarative provisioner (Terraform).
//
// The provisioner turns the versioned resource specification in the
// configured work directory into running fleet nodes and exposes their
// addresses as typed outputs. It never mutates infrastructure itself beyond
// invoking the tool; apply is a no-op when infrastructure already matches
// the specification.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/todofleet/fleetctl/internal/util/retry"
)

// Error is a fatal provisioning failure. The tool's own diagnostics are
// carried verbatim so the operator sees exactly what Terraform reported.
type Error struct {
	Op     string
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("terraform %s failed: %v\n%s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("terraform %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CommandRunner runs one terraform invocation in a directory. It is the
// seam tests replace; the real implementation shells out.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "terraform", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Provisioner drives terraform init/apply/output/destroy for one work
// directory.
type Provisioner struct {
	workDir string
	varFile string
	runner  CommandRunner

	lockRetryDelay time.Duration
}

// New returns a Provisioner for the given work directory and variable file.
func New(workDir, varFile string) *Provisioner {
	return &Provisioner{
		workDir:        workDir,
		varFile:        varFile,
		runner:         execRunner{},
		lockRetryDelay: 10 * time.Second,
	}
}

// WithRunner replaces the command runner; used by tests.
func (p *Provisioner) WithRunner(r CommandRunner) *Provisioner {
	p.runner = r
	return p
}

// Init initializes the work directory against the remote state backend.
// Safe to re-run; -reconfigure tolerates backend changes.
func (p *Provisioner) Init(ctx context.Context) error {
	_, stderr, err := p.runner.Run(ctx, p.workDir, "init", "-input=false", "-reconfigure")
	if err != nil {
		return &Error{Op: "init", Output: stderr, Err: err}
	}
	return nil
}

// Apply converges infrastructure to the specification. A held state lock is
// treated as contention and retried with backoff; every other failure is
// fatal and carries the tool's diagnostics.
func (p *Provisioner) Apply(ctx context.Context) error {
	args := []string{"apply", "-input=false", "-auto-approve"}
	if p.varFile != "" {
		args = append(args, "-var-file="+p.varFile)
	}

	return retry.Do(ctx, func() error {
		_, stderr, err := p.runner.Run(ctx, p.workDir, args...)
		if err == nil {
			return nil
		}
		applyErr := &Error{Op: "apply", Output: stderr, Err: err}
		if isStateLocked(stderr) {
			return applyErr
		}
		return retry.Fatal(applyErr)
	},
		retry.WithMaxRetries(3),
		retry.WithInitialDelay(p.lockRetryDelay),
		retry.WithMaxDelay(time.Minute),
	)
}

// Destroy tears down all managed infrastructure.
func (p *Provisioner) Destroy(ctx context.Context) error {
	args := []string{"destroy", "-input=false", "-auto-approve"}
	if p.varFile != "" {
		args = append(args, "-var-file="+p.varFile)
	}
	_, stderr, err := p.runner.Run(ctx, p.workDir, args...)
	if err != nil {
		return &Error{Op: "destroy", Output: stderr, Err: err}
	}
	return nil
}

// Provision runs init, apply, and output in order and returns the fleet
// addresses.
func (p *Provisioner) Provision(ctx context.Context) (Outputs, error) {
	if err := p.Init(ctx); err != nil {
		return Outputs{}, err
	}
	if err := p.Apply(ctx); err != nil {
		return Outputs{}, err
	}
	return p.Outputs(ctx)
}

// isStateLocked recognizes Terraform's state lock diagnostic. Lock
// contention is transient; everything else is not.
func isStateLocked(stderr string) bool {
	return strings.Contains(stderr, "Error acquiring the state lock") ||
		strings.Contains(stderr, "state lock")
}
