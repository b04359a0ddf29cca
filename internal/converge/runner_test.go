package converge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/sshexec"
)

// markerAwareRunner simulates the marker file and scripts the agent run.
type markerAwareRunner struct {
	markerExists bool
	agentResult  sshexec.Result
	agentErr     error
	commands     []string
}

func (m *markerAwareRunner) Execute(_ context.Context, _, command string) (sshexec.Result, error) {
	m.commands = append(m.commands, command)
	switch {
	case strings.HasPrefix(command, "test -f"):
		if m.markerExists {
			return sshexec.Result{ExitCode: 0}, nil
		}
		return sshexec.Result{ExitCode: 1}, nil
	case strings.Contains(command, "touch"):
		m.markerExists = true
		return sshexec.Result{}, nil
	case strings.Contains(command, "puppet agent"):
		return m.agentResult, m.agentErr
	default:
		return sshexec.Result{}, nil
	}
}

func backendNode() fleet.Node {
	return fleet.Node{Role: fleet.RoleBackend, Address: "10.0.0.3"}
}

func newTestRunner(m *markerAwareRunner) *Runner {
	return NewRunner(m, "todo", "/opt/todo")
}

func TestRun_CleanApply(t *testing.T) {
	m := &markerAwareRunner{agentResult: sshexec.Result{ExitCode: 2}}

	outcome, err := newTestRunner(m).Run(context.Background(), backendNode())
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.True(t, m.markerExists)
}

func TestRun_NoChanges(t *testing.T) {
	m := &markerAwareRunner{markerExists: true, agentResult: sshexec.Result{ExitCode: 0}}

	outcome, err := newTestRunner(m).Run(context.Background(), backendNode())
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
}

func TestRun_FirstRunFailureIsWarning(t *testing.T) {
	m := &markerAwareRunner{
		agentResult: sshexec.Result{ExitCode: 4, Stderr: "Error: /Service[todo]: unable to start"},
	}

	outcome, err := newTestRunner(m).Run(context.Background(), backendNode())
	require.NoError(t, err)
	assert.Equal(t, AppliedWithWarnings, outcome)

	// The excuse is one-time: the marker now exists.
	assert.True(t, m.markerExists)
}

func TestRun_RepeatFailureIsFatal(t *testing.T) {
	m := &markerAwareRunner{
		markerExists: true,
		agentResult:  sshexec.Result{ExitCode: 6, Stderr: "Error: /Service[todo]: unable to start\n"},
	}

	outcome, err := newTestRunner(m).Run(context.Background(), backendNode())
	assert.Equal(t, Failed, outcome)

	var convErr *Error
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "backend", convErr.Node)
	assert.Equal(t, 6, convErr.ExitCode)
	assert.Contains(t, convErr.Detail, "unable to start")
}

func TestRun_TransportFailure(t *testing.T) {
	m := &markerAwareRunner{agentErr: errors.New("connection refused")}

	outcome, err := newTestRunner(m).Run(context.Background(), backendNode())
	assert.Equal(t, Failed, outcome)
	require.Error(t, err)

	var convErr *Error
	assert.False(t, errors.As(err, &convErr))
}

func TestFirstStart(t *testing.T) {
	m := &markerAwareRunner{}

	err := newTestRunner(m).FirstStart(context.Background(), backendNode())
	require.NoError(t, err)

	require.Len(t, m.commands, 1)
	assert.Contains(t, m.commands[0], "cd /opt/todo")
	assert.Contains(t, m.commands[0], "docker compose pull")
	assert.Contains(t, m.commands[0], "docker compose up -d")
}

func TestFirstStart_Failure(t *testing.T) {
	r := NewRunner(&failingRunner{}, "todo", "/opt/todo")

	err := r.FirstStart(context.Background(), backendNode())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")
}

type failingRunner struct{}

func (failingRunner) Execute(context.Context, string, string) (sshexec.Result, error) {
	return sshexec.Result{ExitCode: 1, Stderr: "no configuration file provided"}, nil
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "final", lastLine("first\nsecond\nfinal\n\n"))
	assert.Equal(t, "", lastLine(""))
	assert.Equal(t, "only", lastLine("only"))
}

func TestPathDir(t *testing.T) {
	assert.Equal(t, "/var/lib/todo", pathDir("/var/lib/todo/.converged"))
	assert.Equal(t, "/", pathDir("/file"))
}
