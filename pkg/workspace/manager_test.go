package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithWorkspace_CleansUpOnSuccess(t *testing.T) {
	m := NewManager(t.TempDir())

	var captured string
	err := m.WithWorkspace(context.Background(), func(path string) error {
		captured = path
		_, statErr := os.Stat(path)
		require.NoError(t, statErr)
		return nil
	})

	require.NoError(t, err)
	_, statErr := os.Stat(captured)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWithWorkspace_CleansUpOnError(t *testing.T) {
	m := NewManager(t.TempDir())

	var captured string
	wantErr := errors.New("boom")
	err := m.WithWorkspace(context.Background(), func(path string) error {
		captured = path
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	_, statErr := os.Stat(captured)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCloneBranch_FailsOnBadRepo(t *testing.T) {
	m := NewManager(t.TempDir())
	dest := filepath.Join(t.TempDir(), "dest")

	err := m.CloneBranch(context.Background(), "/nonexistent/repo", "main", dest)
	require.Error(t, err)

	var cloneErr *CloneError
	require.ErrorAs(t, err, &cloneErr)
	assert.Equal(t, "/nonexistent/repo", cloneErr.RepoURL)
	assert.Equal(t, "main", cloneErr.Branch)
}
