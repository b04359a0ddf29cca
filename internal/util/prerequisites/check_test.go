package prerequisites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_MissingTool(t *testing.T) {
	results := Check([]Tool{
		{Name: "definitely-not-a-real-binary-xyz", Required: true, Description: "test"},
	})

	assert.True(t, results.HasErrors())
	require.Len(t, results.Missing, 1)
	assert.Contains(t, results.ErrorMessage(), "definitely-not-a-real-binary-xyz")
}

func TestCheck_OptionalMissingIsNotAnError(t *testing.T) {
	results := Check([]Tool{
		{Name: "definitely-not-a-real-binary-xyz", Required: false},
	})

	assert.False(t, results.HasErrors())
	assert.Empty(t, results.ErrorMessage())
}

func TestCheck_FoundTool(t *testing.T) {
	// sh is present on any platform these tests run on.
	results := Check([]Tool{
		{Name: "sh", Required: true},
	})

	assert.False(t, results.HasErrors())
	require.Len(t, results.Results, 1)
	assert.True(t, results.Results[0].Found)
	assert.NotEmpty(t, results.Results[0].Path)
}

func TestEnsureKeyFile_Missing(t *testing.T) {
	err := EnsureKeyFile(filepath.Join(t.TempDir(), "nope.pem"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEnsureKeyFile_RestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, []byte("key material"), 0o644))

	require.NoError(t, EnsureKeyFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestEnsureKeyFile_Directory(t *testing.T) {
	err := EnsureKeyFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}
