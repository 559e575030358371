package executor

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRun_Success(t *testing.T) {
	svc := New(testLogger())

	var stdout bytes.Buffer
	result, err := svc.Run(context.Background(), Request{
		Path:   "/bin/sh",
		Args:   []string{"-c", "echo hello"},
		Stdout: &stdout,
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestRun_NonzeroExitCapturesStderr(t *testing.T) {
	svc := New(testLogger())

	result, err := svc.Run(context.Background(), Request{
		Path: "/bin/sh",
		Args: []string{"-c", "echo 'connection refused' >&2; exit 3"},
	})

	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Stderr, "connection refused")
}

func TestRun_StreamsStdoutToFile(t *testing.T) {
	svc := New(testLogger())
	path := filepath.Join(t.TempDir(), "out.dump")

	out, err := os.Create(path)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), Request{
		Path:   "/bin/sh",
		Args:   []string{"-c", "printf 'dump content'"},
		Stdout: out,
	})
	require.NoError(t, out.Close())

	require.NoError(t, err)
	assert.True(t, result.Success())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dump content", string(content))
}

func TestRun_PassesExtraEnv(t *testing.T) {
	svc := New(testLogger())

	var stdout bytes.Buffer
	result, err := svc.Run(context.Background(), Request{
		Path:   "/bin/sh",
		Args:   []string{"-c", "printf '%s' \"$PGPASSWORD\""},
		Env:    []string{"PGPASSWORD=hunter2"},
		Stdout: &stdout,
	})

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "hunter2", stdout.String())
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	svc := New(testLogger())

	start := time.Now()
	result, err := svc.Run(context.Background(), Request{
		Path:    "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.False(t, result.Success())
	// Bounded by timeout plus the kill grace period.
	assert.Less(t, elapsed, 200*time.Millisecond+killGrace+time.Second)
}

func TestRun_CommandNotStartable(t *testing.T) {
	svc := New(testLogger())

	result, err := svc.Run(context.Background(), Request{
		Path: filepath.Join(t.TempDir(), "does-not-exist"),
	})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestTailWriter_KeepsOnlyTail(t *testing.T) {
	w := newTailWriter(8)

	_, err := w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)

	assert.Equal(t, "89abcdef", w.String())
}

func TestTailWriter_ManySmallWrites(t *testing.T) {
	w := newTailWriter(4)

	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte(strings.Repeat("x", 3)))
		require.NoError(t, err)
	}
	_, err := w.Write([]byte("tail"))
	require.NoError(t, err)

	assert.Equal(t, "tail", w.String())
}
