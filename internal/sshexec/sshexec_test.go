package sshexec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
)

// writeTestKey generates a throwaway ed25519 key in OpenSSH PEM format.
func writeTestKey(t *testing.T, mode os.FileMode) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), mode))
	return path
}

func TestNewClient_ValidKey(t *testing.T) {
	client, err := NewClient(Config{
		User:    "ubuntu",
		KeyPath: writeTestKey(t, 0o600),
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
}

func TestNewClient_RestrictsKeyPermissions(t *testing.T) {
	path := writeTestKey(t, 0o644)

	_, err := NewClient(Config{User: "ubuntu", KeyPath: path})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient(Config{
		User:    "ubuntu",
		KeyPath: filepath.Join(t.TempDir(), "absent.pem"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.pem")
}

func TestNewClient_GarbageKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	_, err := NewClient(Config{User: "ubuntu", KeyPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestNewClient_MissingUser(t *testing.T) {
	_, err := NewClient(Config{KeyPath: writeTestKey(t, 0o600)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestNewClient_MissingKeyPath(t *testing.T) {
	_, err := NewClient(Config{User: "ubuntu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key path")
}
