package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todofleet/fleetctl/internal/trust"
)

func TestBootstrap_Success(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{}
	installFake(fake)

	err := Bootstrap(context.Background(), "fleet.yaml")
	require.NoError(t, err)
	assert.True(t, fake.bootstrapCalled)
}

func TestBootstrap_DegradedIsNotFatal(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{
		trustErr: &trust.Error{Untrusted: []string{"frontend"}},
	}
	installFake(fake)

	// A degraded fleet is reported but the command succeeds; the operator
	// re-runs the stage once the straggler comes up.
	err := Bootstrap(context.Background(), "fleet.yaml")
	assert.NoError(t, err)
}

func TestBootstrap_HardFailurePropagates(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{trustErr: errors.New("control node unreachable")}
	installFake(fake)

	err := Bootstrap(context.Background(), "fleet.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control node unreachable")
}
