package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts terraform invocations by subcommand.
type fakeRunner struct {
	calls     [][]string
	responses map[string][]fakeResponse
}

type fakeResponse struct {
	stdout string
	stderr string
	err    error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string][]fakeResponse{}}
}

func (f *fakeRunner) on(subcommand string, r fakeResponse) {
	f.responses[subcommand] = append(f.responses[subcommand], r)
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, string, error) {
	f.calls = append(f.calls, args)
	queue := f.responses[args[0]]
	if len(queue) == 0 {
		return "", "", nil
	}
	r := queue[0]
	f.responses[args[0]] = queue[1:]
	return r.stdout, r.stderr, r.err
}

func newTestProvisioner(r CommandRunner) *Provisioner {
	p := New("/infra", "prod.tfvars").WithRunner(r)
	p.lockRetryDelay = time.Millisecond
	return p
}

const outputsJSON = `{
	"control_node_address":  {"value": "10.0.0.1", "sensitive": false},
	"frontend_address":      {"value": "10.0.0.2", "sensitive": false},
	"backend_address":       {"value": "10.0.0.3", "sensitive": false}
}`

func TestProvision_HappyPath(t *testing.T) {
	runner := newFakeRunner()
	runner.on("output", fakeResponse{stdout: outputsJSON})

	out, err := newTestProvisioner(runner).Provision(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", out.ControlAddr)
	assert.Equal(t, "10.0.0.2", out.FrontendAddr)
	assert.Equal(t, "10.0.0.3", out.BackendAddr)

	// init, apply, output in order.
	require.Len(t, runner.calls, 3)
	assert.Equal(t, "init", runner.calls[0][0])
	assert.Equal(t, "apply", runner.calls[1][0])
	assert.Contains(t, runner.calls[1], "-var-file=prod.tfvars")
	assert.Equal(t, "output", runner.calls[2][0])
}

func TestApply_StateLockRetried(t *testing.T) {
	runner := newFakeRunner()
	runner.on("apply", fakeResponse{stderr: "Error acquiring the state lock", err: errors.New("exit 1")})
	runner.on("apply", fakeResponse{})

	err := newTestProvisioner(runner).Apply(context.Background())
	require.NoError(t, err)

	applies := 0
	for _, call := range runner.calls {
		if call[0] == "apply" {
			applies++
		}
	}
	assert.Equal(t, 2, applies)
}

func TestApply_PlanFailureIsFatal(t *testing.T) {
	runner := newFakeRunner()
	runner.on("apply", fakeResponse{stderr: "Error: Invalid value for variable", err: errors.New("exit 1")})

	err := newTestProvisioner(runner).Apply(context.Background())
	require.Error(t, err)

	// No retry, and the tool's diagnostics survive verbatim.
	assert.Len(t, runner.calls, 1)
	assert.Contains(t, err.Error(), "Invalid value for variable")

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "apply", provErr.Op)
}

func TestInit_FailureSurfacesDiagnostics(t *testing.T) {
	runner := newFakeRunner()
	runner.on("init", fakeResponse{stderr: "Error: Backend configuration not found", err: errors.New("exit 1")})

	err := newTestProvisioner(runner).Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Backend configuration not found")
}

func TestOutputs_MissingOutput(t *testing.T) {
	runner := newFakeRunner()
	runner.on("output", fakeResponse{stdout: `{"control_node_address": {"value": "10.0.0.1"}}`})

	_, err := newTestProvisioner(runner).Outputs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frontend_address")
	assert.Contains(t, err.Error(), "missing")
}

func TestOutputs_EmptyAddress(t *testing.T) {
	runner := newFakeRunner()
	runner.on("output", fakeResponse{stdout: `{
		"control_node_address": {"value": ""},
		"frontend_address":     {"value": "10.0.0.2"},
		"backend_address":      {"value": "10.0.0.3"}
	}`})

	_, err := newTestProvisioner(runner).Outputs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestOutputs_NonStringValue(t *testing.T) {
	runner := newFakeRunner()
	runner.on("output", fakeResponse{stdout: `{
		"control_node_address": {"value": ["10.0.0.1"]},
		"frontend_address":     {"value": "10.0.0.2"},
		"backend_address":      {"value": "10.0.0.3"}
	}`})

	_, err := newTestProvisioner(runner).Outputs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a string")
}

func TestOutputs_MalformedJSON(t *testing.T) {
	runner := newFakeRunner()
	runner.on("output", fakeResponse{stdout: "not json"})

	_, err := newTestProvisioner(runner).Outputs(context.Background())
	require.Error(t, err)
}

func TestDestroy_Failure(t *testing.T) {
	runner := newFakeRunner()
	runner.on("destroy", fakeResponse{stderr: "Error: resource busy", err: errors.New("exit 1")})

	err := newTestProvisioner(runner).Destroy(context.Background())
	require.Error(t, err)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "destroy", provErr.Op)
}
