// Package restore selects a backup artifact and drives the matching
// external restore tool against a profile's database.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/koggi/koggi/internal/artifact"
	"github.com/koggi/koggi/internal/config"
	"github.com/koggi/koggi/internal/models"
	"github.com/koggi/koggi/internal/services/executor"
	"github.com/koggi/koggi/internal/tools"
	"github.com/rs/zerolog"
)

// SelectorLatest asks for the newest artifact by embedded timestamp.
const SelectorLatest = "latest"

// DefaultTimeout bounds one restore run.
const DefaultTimeout = time.Hour

// Options controls one restore run.
type Options struct {
	Timeout time.Duration // 0 means DefaultTimeout
}

// Service defines the interface for restore operations.
type Service interface {
	Restore(ctx context.Context, reg *config.Registry, profileName, selector string, opts Options) (*models.OperationOutcome, error)
}

// Impl implements the restore Service interface.
type Impl struct {
	exec   executor.Service
	lookup func(name string) (string, error)
	logger zerolog.Logger
}

// New creates a new restore service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		exec:   executor.New(logger),
		lookup: tools.Lookup,
		logger: logger,
	}
}

// NewWithExecutor creates a restore service with custom collaborators
// (for testing).
func NewWithExecutor(logger zerolog.Logger, exec executor.Service, lookup func(string) (string, error)) *Impl {
	return &Impl{exec: exec, lookup: lookup, logger: logger}
}

// Restore selects an artifact for the profile and replays it into the
// target database. Custom-format artifacts go through pg_restore, plain
// SQL through psql. The restore is not wrapped in a transaction by this
// layer: when the tool exits nonzero the target database may be left
// partially restored, and the outcome says so.
func (s *Impl) Restore(ctx context.Context, reg *config.Registry, profileName, selector string, opts Options) (*models.OperationOutcome, error) {
	start := time.Now()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	profile, err := reg.Resolve(profileName)
	if err != nil {
		return models.Failed(models.KindOf(err), err, time.Since(start)), nil
	}

	target, err := s.selectArtifact(profile, selector)
	if err != nil {
		// No external tool has run yet; the database is untouched.
		return models.Failed(models.KindOf(err), err, time.Since(start)), nil
	}

	s.logger.Info().
		Str("profile", profile.Name).
		Str("database", profile.DBName).
		Str("artifact", target.Path).
		Str("size", humanize.Bytes(uint64(target.SizeBytes))).
		Str("format", target.Format).
		Msg("starting restore")

	var path string
	var args []string
	if target.Format == models.FormatPlain {
		path, err = s.lookup(tools.Psql)
		args = []string{
			"-h", profile.Host,
			"-p", fmt.Sprintf("%d", profile.Port),
			"-U", profile.User,
			"-d", profile.DBName,
			"-v", "ON_ERROR_STOP=1",
			"-f", target.Path,
		}
	} else {
		path, err = s.lookup(tools.PgRestore)
		args = []string{
			"-h", profile.Host,
			"-p", fmt.Sprintf("%d", profile.Port),
			"-U", profile.User,
			"-d", profile.DBName,
			target.Path,
		}
	}
	if err != nil {
		return models.Failed(models.KindToolNotFound, err, time.Since(start)), nil
	}

	result, runErr := s.exec.Run(ctx, executor.Request{
		Path:    path,
		Args:    args,
		Env:     pgEnv(profile),
		Timeout: opts.Timeout,
	})
	if runErr != nil {
		return models.Failed(models.KindUnknownFailure, runErr, time.Since(start)), nil
	}

	if !result.Success() {
		kind := executor.Classify(result)
		s.logger.Warn().
			Str("profile", profile.Name).
			Str("database", profile.DBName).
			Int("exit_code", result.ExitCode).
			Msg("restore failed; the target database may be partially restored")
		outcome := models.Failed(kind,
			models.NewError(kind,
				"restore of %q failed (%s); the target database may be left partially restored: %s",
				profile.DBName, filepath.Base(path), lastLine(result.Stderr)),
			time.Since(start))
		outcome.Process = result
		return outcome, nil
	}

	s.logger.Info().
		Str("profile", profile.Name).
		Str("database", profile.DBName).
		Str("artifact", filepath.Base(target.Path)).
		Dur("duration", result.Duration).
		Msg("restore completed")

	outcome := models.Succeeded(
		fmt.Sprintf("database %q on %s restored from %s", profile.DBName, profile.Addr(), filepath.Base(target.Path)),
		time.Since(start))
	outcome.Artifact = &target
	outcome.Process = result
	return outcome, nil
}

// selectArtifact resolves "latest" or an explicit artifact name to a file
// under the profile's backup directory.
func (s *Impl) selectArtifact(profile *models.Profile, selector string) (models.BackupArtifact, error) {
	if selector == "" || selector == SelectorLatest {
		latest, ok, err := artifact.Latest(profile.BackupDir, profile.Name)
		if err != nil {
			// An unreadable directory is an I/O problem, not an empty one.
			return models.BackupArtifact{}, models.WrapError(models.KindUnknownFailure, err,
				"cannot list %s", profile.BackupDir)
		}
		if !ok {
			return models.BackupArtifact{}, models.NewError(models.KindNoArtifactsFound,
				"no backup artifacts for profile %q in %s", profile.Name, profile.BackupDir)
		}
		return latest, nil
	}

	// Explicit artifact names are confined to the profile's directory.
	name := filepath.Base(selector)
	path := filepath.Join(profile.BackupDir, name)

	info, err := os.Stat(path)
	if err != nil {
		return models.BackupArtifact{}, models.NewError(models.KindArtifactNotFound,
			"artifact %q not found in %s", name, profile.BackupDir)
	}

	target, ok := artifact.Parse(profile.Name, name)
	if !ok {
		// Accept foreign files by extension so hand-copied dumps restore.
		format, extOK := formatByExtension(name)
		if !extOK {
			return models.BackupArtifact{}, models.NewError(models.KindArtifactNotFound,
				"%q is not a recognizable backup artifact", name)
		}
		target = models.BackupArtifact{Profile: profile.Name, Format: format}
	}

	target.Path = path
	target.SizeBytes = info.Size()
	return target, nil
}

func formatByExtension(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case "." + artifact.ExtCustom, "." + artifact.ExtLegacy:
		return models.FormatCustom, true
	case "." + artifact.ExtPlain:
		return models.FormatPlain, true
	default:
		return "", false
	}
}

func pgEnv(profile *models.Profile) []string {
	env := []string{fmt.Sprintf("PGSSLMODE=%s", profile.SSLMode)}
	if profile.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", profile.Password))
	}
	return env
}

func lastLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
