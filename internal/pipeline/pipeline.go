// Package pipeline sequences the deployment stages: provision,
// bootstrap-trust, deploy-app, verify-status.
//
// Stages run sequentially; per-node work within a stage is sequential too,
// and a node's failure never aborts its siblings. Stage-scoped failures
// (the provisioner, the control node) abort the run: downstream stages
// would have no valid input. Stages 2-4 are independently re-runnable
// against an already-provisioned fleet; each one re-derives node addresses
// from the provisioner rather than trusting anything cached.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/todofleet/fleetctl/internal/config"
	"github.com/todofleet/fleetctl/internal/converge"
	"github.com/todofleet/fleetctl/internal/creds"
	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/health"
	"github.com/todofleet/fleetctl/internal/provision"
	"github.com/todofleet/fleetctl/internal/trust"
	"github.com/todofleet/fleetctl/internal/ui"
)

// Provisioner is the infrastructure seam.
type Provisioner interface {
	Provision(ctx context.Context) (provision.Outputs, error)
	Outputs(ctx context.Context) (provision.Outputs, error)
}

// BackendEnsurer bootstraps the provisioner's remote state backend.
type BackendEnsurer interface {
	Ensure(ctx context.Context) error
}

// TrustRunner runs the certificate handshake for a fleet.
type TrustRunner interface {
	Run(ctx context.Context) (trust.Report, error)
}

// Distributor pushes credentials to one node.
type Distributor interface {
	Distribute(ctx context.Context, node fleet.Node, c creds.Credentials, secrets map[string]string) error
}

// Converger triggers convergence and the workload first-start on one node.
type Converger interface {
	Run(ctx context.Context, node fleet.Node) (converge.Outcome, error)
	FirstStart(ctx context.Context, node fleet.Node) error
}

// Verifier probes one node's service.
type Verifier interface {
	Verify(ctx context.Context, node fleet.Node, baseURL string) health.Report
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	cfg *config.Config
	out *ui.Printer

	provisioner Provisioner
	backend     BackendEnsurer
	newTrust    func(fleet.Fleet) TrustRunner
	distributor Distributor
	source      creds.Source
	converger   Converger
	verifier    Verifier

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an Orchestrator over the given collaborators.
func New(
	cfg *config.Config,
	out *ui.Printer,
	provisioner Provisioner,
	backend BackendEnsurer,
	newTrust func(fleet.Fleet) TrustRunner,
	distributor Distributor,
	source creds.Source,
	converger Converger,
	verifier Verifier,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		out:         out,
		provisioner: provisioner,
		backend:     backend,
		newTrust:    newTrust,
		distributor: distributor,
		source:      source,
		converger:   converger,
		verifier:    verifier,
		sleep:       sleepCtx,
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

// fleetFrom maps provisioner outputs to the session's node set.
func (o *Orchestrator) fleetFrom(outputs provision.Outputs) fleet.Fleet {
	key := o.cfg.SSH.KeyPath
	return fleet.Fleet{
		Control:  fleet.Node{Role: fleet.RoleControl, Address: outputs.ControlAddr, KeyPath: key},
		Frontend: fleet.Node{Role: fleet.RoleFrontend, Address: outputs.FrontendAddr, KeyPath: key},
		Backend:  fleet.Node{Role: fleet.RoleBackend, Address: outputs.BackendAddr, KeyPath: key},
	}
}

// currentFleet re-derives node addresses from the provisioner. Stages never
// trust cached session state; infrastructure may have changed since the
// last run.
func (o *Orchestrator) currentFleet(ctx context.Context) (fleet.Fleet, error) {
	outputs, err := o.provisioner.Outputs(ctx)
	if err != nil {
		return fleet.Fleet{}, err
	}
	fl := o.fleetFrom(outputs)
	return fl, fl.Validate()
}

// Provision ensures the state backend and converges infrastructure to the
// resource specification. Fatal on any provisioner failure: nothing
// downstream has valid input without addresses.
func (o *Orchestrator) Provision(ctx context.Context) (fleet.Fleet, error) {
	o.out.Title("Provision fleet infrastructure")

	o.out.Step("Ensuring state backend (bucket, lock table)...")
	if err := o.backend.Ensure(ctx); err != nil {
		return fleet.Fleet{}, fmt.Errorf("state backend bootstrap failed: %w", err)
	}

	o.out.Step("Applying resource specification...")
	outputs, err := o.provisioner.Provision(ctx)
	if err != nil {
		return fleet.Fleet{}, err
	}

	fl := o.fleetFrom(outputs)
	if err := fl.Validate(); err != nil {
		return fleet.Fleet{}, err
	}

	for _, node := range fl.All() {
		o.out.StatusLine(node.Name(), true, node.Address)
	}
	o.out.Summary("provision", len(fl.All()), 0)
	return fl, nil
}

// BootstrapTrust runs the certificate handshake against the current fleet.
// Unsigned nodes after the final round are degraded, not fatal: the report
// is printed and the error distinguishes the two for the caller.
func (o *Orchestrator) BootstrapTrust(ctx context.Context) (trust.Report, error) {
	o.out.Title("Bootstrap agent trust")

	fl, err := o.currentFleet(ctx)
	if err != nil {
		return trust.Report{}, err
	}

	o.out.Step("Waiting for bootstrap agents to settle...")
	report, err := o.newTrust(fl).Run(ctx)

	for _, s := range report.Statuses {
		o.out.StatusLine(s.Node.Name(), s.State == fleet.TrustSigned, s.Detail)
	}

	signed := 0
	for _, s := range report.Statuses {
		if s.State == fleet.TrustSigned {
			signed++
		}
	}
	o.out.Summary("bootstrap-trust", signed, len(report.Statuses)-signed)

	if err != nil {
		var trustErr *trust.Error
		if errors.As(err, &trustErr) {
			o.out.Warn("trust bootstrap degraded: %v", trustErr)
		}
		return report, err
	}
	return report, nil
}

// Deploy distributes credentials, converges every node, first-starts the
// workload on app nodes, and verifies health after a settle delay. Node
// failures are recorded and siblings continue; the returned error is
// non-nil when any node ended the stage failed.
func (o *Orchestrator) Deploy(ctx context.Context) (*fleet.Session, error) {
	o.out.Title("Deploy application")

	fl, err := o.currentFleet(ctx)
	if err != nil {
		// Fail fast: no remote execution without valid addresses.
		return nil, err
	}

	session := fleet.NewSession("deploy-app")

	credentials, err := o.source.RegistryCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("no registry credentials available: %w", err)
	}

	o.out.Section("Distributing registry credentials")
	failed := map[string]bool{}
	for _, node := range fl.Agents() {
		if err := o.distributor.Distribute(ctx, node, credentials, nil); err != nil {
			failed[node.Name()] = true
			session.Record(node, err, "credential distribution failed")
			o.out.StatusLine(node.Name(), false, "credentials")
			continue
		}
		o.out.StatusLine(node.Name(), true, "credentials")
	}

	o.out.Section("Running convergence")
	for _, node := range fl.All() {
		if failed[node.Name()] {
			// Convergence would fail downstream without credentials.
			continue
		}
		outcome, err := o.converger.Run(ctx, node)
		switch outcome {
		case converge.Applied:
			session.Record(node, nil, string(outcome))
			o.out.StatusLine(node.Name(), true, "")
		case converge.AppliedWithWarnings:
			session.Record(node, nil, string(outcome))
			o.out.StatusLine(node.Name(), false, "applied with warnings (first run)")
		default:
			failed[node.Name()] = true
			session.Record(node, err, string(outcome))
			o.out.Fail("%s: %v", node.Name(), err)
		}
	}

	o.out.Section("Starting workload")
	for _, node := range fl.Agents() {
		if failed[node.Name()] {
			continue
		}
		if err := o.converger.FirstStart(ctx, node); err != nil {
			failed[node.Name()] = true
			session.Record(node, err, "workload start failed")
			o.out.Fail("%s: %v", node.Name(), err)
			continue
		}
		o.out.StatusLine(node.Name(), true, "workload started")
	}

	o.out.Step("Waiting %s for services to settle...", o.cfg.Timing.DeploySettle)
	if err := o.sleep(ctx, o.cfg.Timing.DeploySettle); err != nil {
		return session, err
	}

	o.out.Section("Verifying health")
	o.verifyFleet(ctx, fl, session)

	passed := len(session.Results) - session.Failures()
	o.out.Summary("deploy-app", passed, session.Failures())

	if len(failed) > 0 {
		return session, fmt.Errorf("deploy failed on %d node(s)", len(failed))
	}
	return session, nil
}

// VerifyStatus probes every service and reports. It always runs to
// completion: unreachable nodes are recorded as down, and the stage
// succeeds as long as the report was produced.
func (o *Orchestrator) VerifyStatus(ctx context.Context) ([]health.Report, error) {
	o.out.Title("Verify fleet status")

	fl, err := o.currentFleet(ctx)
	if err != nil {
		return nil, err
	}

	session := fleet.NewSession("verify-status")
	reports := o.verifyFleet(ctx, fl, session)

	o.out.Summary("verify-status", len(session.Results)-session.Failures(), session.Failures())
	if n := session.Failures(); n > 0 {
		o.out.Warn("%d service(s) unhealthy", n)
	}
	return reports, nil
}

// verifyFleet probes the application services and records outcomes. A
// degraded or down service is a recorded failure, never an abort.
func (o *Orchestrator) verifyFleet(ctx context.Context, fl fleet.Fleet, session *fleet.Session) []health.Report {
	targets := []struct {
		node fleet.Node
		url  string
	}{
		{fl.Frontend, fmt.Sprintf("http://%s:%d", fl.Frontend.Address, o.cfg.Health.FrontendPort)},
		{fl.Backend, fmt.Sprintf("http://%s:%d", fl.Backend.Address, o.cfg.Health.BackendPort)},
	}

	var reports []health.Report
	for _, target := range targets {
		report := o.verifier.Verify(ctx, target.node, target.url)
		reports = append(reports, report)

		switch report.Status {
		case health.Up:
			session.Record(target.node, nil, "up")
			o.out.StatusLine(target.node.Name(), true, "")
		case health.Degraded:
			session.Record(target.node, fmt.Errorf("degraded: %s", report.Detail), report.Detail)
			o.out.StatusLine(target.node.Name(), false, report.Detail)
		default:
			session.Record(target.node, fmt.Errorf("down: %s", report.Detail), report.Detail)
			o.out.Fail("%s: %s", target.node.Name(), report.Detail)
		}
	}
	return reports
}
