package recipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_NodeProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"),
		[]byte(`{"scripts": {"test": "jest --ci"}}`), 0o644))

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, LanguageNode, rec.Language)
	assert.Equal(t, "jest --ci", rec.TestCommand)
	assert.False(t, rec.UsedExistingDir)

	body, err := os.ReadFile(rec.DockerfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(body), nodeBaseImage)

	info, err := os.Stat(rec.WrapperPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestResolve_AppliesSadguardYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sadguardDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sadguardDir, overridesName), []byte(
		"run_timeout: 9m\nmax_iterations: 5\ndebug_expose_port: \"8081/tcp\"\n"), 0o644))

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, rec.RunTimeout)
	assert.Equal(t, 5, rec.MaxIterations)
	assert.Equal(t, "8081/tcp", rec.DebugExposePort)
}

func TestResolve_MissingOverridesFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.Zero(t, rec.RunTimeout)
	assert.Zero(t, rec.MaxIterations)
}

func TestResolve_RejectsMalformedOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sadguardDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sadguardDir, overridesName), []byte("run_timeout: [not a duration\n"), 0o644))

	_, err := Resolve(dir)
	require.Error(t, err)
}

func TestResolve_PythonRequirements(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask\n"), 0o644))

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, LanguagePython, rec.Language)
	assert.Equal(t, "pip install -r requirements.txt", rec.InstallCommand)
}

func TestResolve_DefaultsToPython(t *testing.T) {
	dir := t.TempDir()

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, LanguagePython, rec.Language)
	assert.Equal(t, pythonTestCmd, rec.TestCommand)
}

func TestResolve_UsesExistingRecipe(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, sadguardDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sadguardDir, dockerfileName), []byte("FROM scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sadguardDir, wrapperName), []byte("#!/bin/sh\n"), 0o644))

	rec, err := Resolve(dir)
	require.NoError(t, err)
	assert.True(t, rec.UsedExistingDir)

	info, err := os.Stat(rec.WrapperPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
