// Package prober validates that a profile can reach a live PostgreSQL
// server, independent of backup and restore.
package prober

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/koggi/koggi/internal/models"
	"github.com/koggi/koggi/internal/services/executor"
	"github.com/koggi/koggi/internal/tools"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds the probe so an unreachable host never hangs the
// CLI.
const DefaultTimeout = 10 * time.Second

// LookupFunc resolves a client binary to an executable path.
type LookupFunc func(name string) (string, error)

// Service defines the interface for connection probes.
type Service interface {
	Test(ctx context.Context, profile *models.Profile, timeout time.Duration) (*models.OperationOutcome, error)
}

// Impl implements the prober Service interface.
type Impl struct {
	exec   executor.Service
	lookup LookupFunc
	logger zerolog.Logger
}

// New creates a new prober service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		exec:   executor.New(logger),
		lookup: tools.Lookup,
		logger: logger,
	}
}

// NewWithExecutor creates a prober with custom collaborators (for testing).
func NewWithExecutor(logger zerolog.Logger, exec executor.Service, lookup LookupFunc) *Impl {
	return &Impl{exec: exec, lookup: lookup, logger: logger}
}

// Test runs a minimal round-trip query against the profile's server.
// The probe has no side effects beyond the connection itself. A timeout
// is reported as a network failure: from the caller's point of view an
// unreachable host and a host that never answers are the same condition.
func (s *Impl) Test(ctx context.Context, profile *models.Profile, timeout time.Duration) (*models.OperationOutcome, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()

	psql, err := s.lookup(tools.Psql)
	if err != nil {
		return models.Failed(models.KindToolNotFound, err, time.Since(start)), nil
	}

	s.logger.Info().
		Str("profile", profile.Name).
		Str("addr", profile.Addr()).
		Str("database", profile.DBName).
		Msg("testing connection")

	args := []string{
		"-h", profile.Host,
		"-p", fmt.Sprintf("%d", profile.Port),
		"-U", profile.User,
		"-d", profile.DBName,
		"-tA",
		"-v", "ON_ERROR_STOP=1",
		"-c", "SELECT version()",
	}

	// libpq treats PGCONNECT_TIMEOUT=0 as "wait indefinitely", so
	// sub-second timeouts clamp to 1; the runner timeout stays exact.
	connectTimeout := int(timeout / time.Second)
	if connectTimeout < 1 {
		connectTimeout = 1
	}

	env := []string{
		fmt.Sprintf("PGSSLMODE=%s", profile.SSLMode),
		fmt.Sprintf("PGCONNECT_TIMEOUT=%d", connectTimeout),
	}
	if profile.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", profile.Password))
	}

	var stdout bytes.Buffer
	result, err := s.exec.Run(ctx, executor.Request{
		Path:    psql,
		Args:    args,
		Env:     env,
		Stdout:  &stdout,
		Timeout: timeout,
	})
	if err != nil {
		return models.Failed(models.KindUnknownFailure, err, time.Since(start)), nil
	}

	if !result.Success() {
		kind := classifyProbe(result)
		outcome := models.Failed(kind,
			models.NewError(kind, "connection test failed: %s", strings.TrimSpace(result.Stderr)),
			time.Since(start))
		outcome.Process = result
		return outcome, nil
	}

	version := strings.TrimSpace(stdout.String())
	s.logger.Info().
		Str("profile", profile.Name).
		Str("server", version).
		Dur("duration", result.Duration).
		Msg("connection OK")

	outcome := models.Succeeded(version, time.Since(start))
	outcome.Process = result
	return outcome, nil
}

// classifyProbe narrows the generic runner classification to the three
// failure classes a probe distinguishes: credentials rejected, host
// unreachable, or a reachable server that still errored.
func classifyProbe(result *models.ProcessResult) models.FailureKind {
	switch executor.Classify(result) {
	case models.KindAuthFailure:
		return models.KindAuthFailure
	case models.KindNetworkFailure, models.KindTimeout:
		return models.KindNetworkFailure
	default:
		return models.KindServerError
	}
}
