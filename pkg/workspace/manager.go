// Package workspace manages the scoped temporary directories a PR run
// clones into, guaranteeing cleanup on every exit path.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
)

// CloneError is returned when the underlying git clone fails. It carries
// the captured stderr for diagnostics.
type CloneError struct {
	RepoURL string
	Branch  string
	Stderr  string
	Err     error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone %s (branch %s): %v: %s", e.RepoURL, e.Branch, e.Err, e.Stderr)
}

func (e *CloneError) Unwrap() error { return e.Err }

// Manager creates and tears down per-run workspace directories.
type Manager struct {
	baseDir string
}

// NewManager returns a Manager that creates workspaces under baseDir. An
// empty baseDir uses the OS default temp directory.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// WithWorkspace creates a fresh directory, invokes fn with its path, and
// removes the directory on every exit path (whether fn returns an error
// or panics).
func (m *Manager) WithWorkspace(ctx context.Context, fn func(path string) error) (err error) {
	dir, err := os.MkdirTemp(m.baseDir, "sadguard-"+uuid.NewString()+"-")
	if err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
			err = fmt.Errorf("remove workspace dir: %w", rmErr)
		}
	}()

	return fn(dir)
}

// CloneBranch performs a shallow, single-branch clone of branch from
// repoURL into dest.
func (m *Manager) CloneBranch(ctx context.Context, repoURL, branch, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone",
		"--branch", branch,
		"--single-branch",
		"--depth", "1",
		repoURL, dest,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &CloneError{RepoURL: repoURL, Branch: branch, Stderr: stderr.String(), Err: err}
	}
	return nil
}
