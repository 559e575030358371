// Package executor launches and supervises the external PostgreSQL client
// binaries. It is the only place in koggi that touches os/exec.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/koggi/koggi/internal/models"
	"github.com/rs/zerolog"
)

const (
	// stderrLimit bounds captured diagnostics to the last 16 KiB.
	stderrLimit = 16 * 1024

	// killGrace is how long a timed-out child gets between SIGKILL and
	// the runner giving up on Wait. Together with the timeout this bounds
	// every invocation to timeout + killGrace.
	killGrace = 2 * time.Second
)

// Request describes one external tool invocation.
type Request struct {
	Path    string    // resolved executable path
	Args    []string  // argv; must never contain secrets
	Env     []string  // extra KEY=VALUE entries, appended to os.Environ
	Stdout  io.Writer // sink for streamed stdout; nil discards
	Timeout time.Duration
}

// Service runs external commands and reports structured results.
type Service interface {
	Run(ctx context.Context, req Request) (*models.ProcessResult, error)
}

// Impl implements the executor Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new executor service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Run executes the request and waits for completion. Tool failures come
// back inside the ProcessResult; the error return is reserved for commands
// that could not be started at all. Command environments are never logged.
func (s *Impl) Run(ctx context.Context, req Request) (*models.ProcessResult, error) {
	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	stdout := req.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := newTailWriter(stderrLimit)

	cmd := exec.CommandContext(runCtx, req.Path, req.Args...)
	cmd.Env = append(os.Environ(), req.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killGrace

	s.logger.Debug().
		Str("tool", filepath.Base(req.Path)).
		Strs("args", req.Args).
		Dur("timeout", req.Timeout).
		Msg("running external tool")

	start := time.Now()
	err := cmd.Run()
	result := &models.ProcessResult{
		Duration: time.Since(start),
		Stderr:   stderr.String(),
	}

	switch {
	case err == nil:
		return result, nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
		s.logger.Warn().
			Str("tool", filepath.Base(req.Path)).
			Dur("timeout", req.Timeout).
			Msg("external tool timed out and was killed")
		return result, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// Not an exit status: the command never started.
		return nil, fmt.Errorf("starting %s: %w", filepath.Base(req.Path), err)
	}
}

// tailWriter keeps only the last limit bytes written to it.
type tailWriter struct {
	limit int
	buf   []byte
}

func newTailWriter(limit int) *tailWriter {
	return &tailWriter{limit: limit}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) > w.limit {
		w.buf = w.buf[len(w.buf)-w.limit:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return string(w.buf)
}
