package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todofleet/fleetctl/internal/creds"
)

func TestDeploy_Success(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{}
	installFake(fake)

	err := Deploy(context.Background(), "fleet.yaml", "env")
	require.NoError(t, err)
	assert.True(t, fake.deployCalled)
}

func TestDeploy_SourceSelection(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	t.Run("prompt", func(t *testing.T) {
		fake := &fakeOrchestrator{}
		installFake(fake)

		require.NoError(t, Deploy(context.Background(), "fleet.yaml", "prompt"))
		assert.IsType(t, creds.PromptSource{}, fake.source)
	})

	t.Run("env", func(t *testing.T) {
		fake := &fakeOrchestrator{}
		installFake(fake)

		require.NoError(t, Deploy(context.Background(), "fleet.yaml", "env"))
		assert.IsType(t, creds.EnvSource{}, fake.source)
	})

	t.Run("manager", func(t *testing.T) {
		fake := &fakeOrchestrator{}
		installFake(fake)

		getter := &fakeGetter{values: map[string]string{}}
		newSecretGetter = func(_ context.Context, _ string) (creds.SecretGetter, error) {
			return getter, nil
		}

		require.NoError(t, Deploy(context.Background(), "fleet.yaml", "manager"))
		source, ok := fake.source.(creds.ManagerSource)
		require.True(t, ok)
		assert.Equal(t, "todoapp/ci", source.Prefix)
	})

	t.Run("unknown", func(t *testing.T) {
		fake := &fakeOrchestrator{}
		installFake(fake)

		err := Deploy(context.Background(), "fleet.yaml", "vault")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown credential source")
		assert.False(t, fake.deployCalled)
	})
}

func TestDeploy_ManagerOpenError(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{}
	installFake(fake)

	newSecretGetter = func(_ context.Context, _ string) (creds.SecretGetter, error) {
		return nil, errors.New("no ambient credentials")
	}

	err := Deploy(context.Background(), "fleet.yaml", "manager")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open secret manager")
}

func TestDeploy_NodeFailuresPropagate(t *testing.T) {
	saveAndRestoreFactories(t)
	stubConfigAndKey()

	fake := &fakeOrchestrator{deployErr: errors.New("deploy failed on 1 node(s)")}
	installFake(fake)

	err := Deploy(context.Background(), "fleet.yaml", "env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deploy failed on 1 node(s)")
}

// fakeGetter serves secrets from a map.
type fakeGetter struct {
	values map[string]string
}

func (f *fakeGetter) Get(_ context.Context, name string) (string, error) {
	value, ok := f.values[name]
	if !ok {
		return "", errors.New("secret " + name + " not found")
	}
	return value, nil
}
