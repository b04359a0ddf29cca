package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todofleet/fleetctl/internal/fleet"
	"github.com/todofleet/fleetctl/internal/health"
)

func sampleReports() []health.Report {
	return []health.Report{
		{
			Node:      fleet.Node{Role: fleet.RoleFrontend, Address: "10.0.0.2"},
			Status:    health.Up,
			CheckedAt: time.Now(),
		},
		{
			Node:      fleet.Node{Role: fleet.RoleBackend, Address: "10.0.0.3"},
			Status:    health.Down,
			Detail:    "connection refused",
			CheckedAt: time.Now(),
		},
	}
}

func TestStatus_SinglePass(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{reports: sampleReports()}
	installFake(fake)

	err := Status(context.Background(), "fleet.yaml", false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.statusCalls)
}

func TestStatus_JSONOutput(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{reports: sampleReports()}
	installFake(fake)

	err := Status(context.Background(), "fleet.yaml", false, true)
	require.NoError(t, err)
}

func TestStatus_StageError(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{statusErr: errors.New("no provisioned fleet")}
	installFake(fake)

	err := Status(context.Background(), "fleet.yaml", false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provisioned fleet")
}

func TestStatus_WatchStopsOnCancel(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{reports: sampleReports()}
	installFake(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The initial pass runs, then the cancelled context ends the loop.
	err := Status(ctx, "fleet.yaml", true, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fake.statusCalls, 1)
}

func TestPrintStatusJSON(t *testing.T) {
	err := printStatusJSON(sampleReports())
	assert.NoError(t, err)
}
