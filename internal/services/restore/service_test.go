package restore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/koggi/koggi/internal/config"
	"github.com/koggi/koggi/internal/models"
	"github.com/koggi/koggi/internal/services/backup"
	"github.com/koggi/koggi/internal/services/executor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	runFunc func(ctx context.Context, req executor.Request) (*models.ProcessResult, error)
	calls   int
}

func (m *mockExecutor) Run(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
	m.calls++
	if m.runFunc != nil {
		return m.runFunc(ctx, req)
	}
	return &models.ProcessResult{}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func toolLookup(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func testRegistry(t *testing.T, backupDir string) *config.Registry {
	t.Helper()
	return config.NewParser().LoadEnviron([]string{
		"KOGGI_DEFAULT_DB_NAME=app",
		"KOGGI_DEFAULT_DB_USER=postgres",
		"KOGGI_DEFAULT_DB_PASSWORD=secret",
		"KOGGI_DEFAULT_BACKUP_DIR=" + backupDir,
	})
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0o600))
	return path
}

func TestRestore_LatestPicksNewestEmbeddedTimestamp(t *testing.T) {
	dir := t.TempDir()

	// Written newest-first so filesystem mtime order contradicts the
	// embedded timestamps.
	newest := writeArtifact(t, dir, "DEFAULT_20260823T150000Z.dump")
	writeArtifact(t, dir, "DEFAULT_20260823T130000Z.dump")
	writeArtifact(t, dir, "DEFAULT_20260823T140000Z.dump")

	var captured executor.Request
	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			captured = req
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Equal(t, "/usr/bin/pg_restore", captured.Path)
	assert.Contains(t, captured.Args, newest)
	assert.Contains(t, captured.Env, "PGPASSWORD=secret")
	assert.NotContains(t, captured.Args, "secret")
	assert.Equal(t, newest, outcome.Artifact.Path)
}

func TestRestore_PlainArtifactUsesPsql(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "DEFAULT_20260823T150000Z.sql")

	var captured executor.Request
	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			captured = req
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Equal(t, "/usr/bin/psql", captured.Path)
	assert.Contains(t, captured.Args, "-f")
	assert.Contains(t, captured.Args, path)
	assert.Contains(t, captured.Args, "ON_ERROR_STOP=1")
}

func TestRestore_EmptyDirectoryInvokesNoTool(t *testing.T) {
	exec := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, t.TempDir()), "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, models.KindNoArtifactsFound, outcome.Kind)
	assert.Zero(t, exec.calls)
}

func TestRestore_UnreadableBackupDirIsNotNoArtifacts(t *testing.T) {
	// A path that exists but cannot be listed as a directory.
	notADir := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	exec := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, notADir), "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, models.KindUnknownFailure, outcome.Kind)
	assert.Zero(t, exec.calls)
}

func TestRestore_ExplicitArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "DEFAULT_20260823T150000Z.dump")
	older := writeArtifact(t, dir, "DEFAULT_20260823T130000Z.dump")

	var captured executor.Request
	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			captured = req
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT",
		"DEFAULT_20260823T130000Z.dump", Options{})

	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Contains(t, captured.Args, older)
}

func TestRestore_ExplicitArtifactMissing(t *testing.T) {
	exec := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, t.TempDir()), "DEFAULT",
		"DEFAULT_20990101T000000Z.dump", Options{})

	require.NoError(t, err)
	assert.Equal(t, models.KindArtifactNotFound, outcome.Kind)
	assert.Zero(t, exec.calls)
}

func TestRestore_ExplicitSelectorIsConfinedToBackupDir(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "DEFAULT_20260823T150000Z.dump")

	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT",
		"../../etc/DEFAULT_20260823T150000Z.dump", Options{})

	// The path is reduced to its base name inside the backup directory.
	require.NoError(t, err)
	require.True(t, outcome.Success)
}

func TestRestore_ForeignDumpByExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "handmade.sql")

	var captured executor.Request
	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			captured = req
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT", "handmade.sql", Options{})

	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Equal(t, "/usr/bin/psql", captured.Path)
	assert.Contains(t, captured.Args, path)
}

func TestRestore_UnrecognizableExplicitFile(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "notes.txt")

	exec := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT", "notes.txt", Options{})

	require.NoError(t, err)
	assert.Equal(t, models.KindArtifactNotFound, outcome.Kind)
	assert.Zero(t, exec.calls)
}

func TestRestore_FailureWarnsAboutPartialState(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "DEFAULT_20260823T150000Z.dump")

	exec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			return &models.ProcessResult{
				ExitCode: 1,
				Stderr:   `pg_restore: error: could not execute query: ERROR:  relation "users" already exists`,
			}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, dir), "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, models.KindUnknownFailure, outcome.Kind)
	assert.Contains(t, outcome.Err.Error(), "partially restored")
}

func TestRestore_UnknownProfile(t *testing.T) {
	exec := &mockExecutor{}

	svc := NewWithExecutor(testLogger(), exec, toolLookup)
	outcome, err := svc.Restore(context.Background(), testRegistry(t, t.TempDir()), "PROD", SelectorLatest, Options{})

	require.NoError(t, err)
	assert.Equal(t, models.KindUnknownProfile, outcome.Kind)
	assert.Zero(t, exec.calls)
}

// Backup immediately followed by restore of "latest" must select exactly
// the artifact the backup just created.
func TestBackupThenRestoreLatestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := testRegistry(t, dir)

	// An older artifact that must not be selected.
	writeArtifact(t, dir, "DEFAULT_20200101T000000Z.dump")

	backupExec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			_, err := req.Stdout.Write([]byte("fresh dump"))
			require.NoError(t, err)
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}
	backupSvc := backup.NewWithExecutor(testLogger(), backupExec, toolLookup,
		func(string) (uint64, error) { return 1 << 40, nil })

	backupOutcome, err := backupSvc.Backup(context.Background(), reg, "DEFAULT", backup.Options{})
	require.NoError(t, err)
	require.True(t, backupOutcome.Success)

	var captured executor.Request
	restoreExec := &mockExecutor{
		runFunc: func(ctx context.Context, req executor.Request) (*models.ProcessResult, error) {
			captured = req
			return &models.ProcessResult{ExitCode: 0}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), restoreExec, toolLookup)
	restoreOutcome, err := svc.Restore(context.Background(), reg, "DEFAULT", SelectorLatest, Options{})

	require.NoError(t, err)
	require.True(t, restoreOutcome.Success)
	assert.Contains(t, captured.Args, backupOutcome.Artifact.Path)
	assert.Equal(t, backupOutcome.Artifact.Path, restoreOutcome.Artifact.Path)
}
