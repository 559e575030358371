// Package backup drives pg_dump against a profile and manages the
// resulting artifact files.
package backup

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
	"github.com/shirou/gopsutil/v3/disk"
)

// Defaults for backup options.
const (
	DefaultTimeout = time.Hour

	// DefaultMinFreeBytes is the preflight floor: a backup is refused
	// when the target filesystem has less free space than this.
	DefaultMinFreeBytes = 64 << 20
)

// Options controls one backup run.
type Options struct {
	Format       string        // "custom" (default) or "plain"
	Timeout      time.Duration // 0 means DefaultTimeout
	MinFreeBytes uint64        // 0 means DefaultMinFreeBytes
}

// Service defines the interface for backup operations.
type Service interface {
	Backup(ctx context.Context, reg *config.Registry, profileName string, opts Options) (*models.OperationOutcome, error)
}

// DiskFreeFunc reports the free bytes on the filesystem holding path.
type DiskFreeFunc func(path string) (uint64, error)

// Impl implements the backup Service interface.
type Impl struct {
	exec     executor.Service
	lookup   func(name string) (string, error)
	diskFree DiskFreeFunc
	logger   zerolog.Logger
}

// New creates a new backup service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		exec:     executor.New(logger),
		lookup:   tools.Lookup,
		diskFree: gopsutilFree,
		logger:   logger,
	}
}

// NewWithExecutor creates a backup service with custom collaborators (for
// testing).
func NewWithExecutor(logger zerolog.Logger, exec executor.Service, lookup func(string) (string, error), diskFree DiskFreeFunc) *Impl {
	return &Impl{exec: exec, lookup: lookup, diskFree: diskFree, logger: logger}
}

func gopsutilFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Backup resolves the profile, streams a pg_dump of its database to a
// timestamped file under the profile's backup directory and verifies the
// result. No failure path leaves a partial file behind.
func (s *Impl) Backup(ctx context.Context, reg *config.Registry, profileName string, opts Options) (*models.OperationOutcome, error) {
	start := time.Now()

	if opts.Format == "" {
		opts.Format = models.FormatCustom
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = DefaultMinFreeBytes
	}
	if opts.Format != models.FormatCustom && opts.Format != models.FormatPlain {
		return nil, fmt.Errorf("unsupported backup format %q", opts.Format)
	}

	profile, err := reg.Resolve(profileName)
	if err != nil {
		return models.Failed(models.KindOf(err), err, time.Since(start)), nil
	}

	destPath := filepath.Join(profile.BackupDir, artifact.Filename(profile.Name, start, opts.Format))

	s.logger.Info().
		Str("profile", profile.Name).
		Str("database", profile.DBName).
		Str("format", opts.Format).
		Str("output", destPath).
		Msg("starting backup")

	if err := os.MkdirAll(profile.BackupDir, 0o750); err != nil {
		return models.Failed(models.KindDirectoryUnwritable,
			models.WrapError(models.KindDirectoryUnwritable, err, "cannot create backup directory %s", profile.BackupDir),
			time.Since(start)), nil
	}

	if free, ferr := s.diskFree(profile.BackupDir); ferr != nil {
		// Preflight is advisory when the filesystem cannot be inspected.
		s.logger.Warn().Err(ferr).Str("dir", profile.BackupDir).Msg("could not check free disk space")
	} else if free < opts.MinFreeBytes {
		return models.Failed(models.KindDiskFull,
			models.NewError(models.KindDiskFull, "only %s free in %s, need at least %s",
				humanize.Bytes(free), profile.BackupDir, humanize.Bytes(opts.MinFreeBytes)),
			time.Since(start)), nil
	}

	pgDump, err := s.lookup(tools.PgDump)
	if err != nil {
		return models.Failed(models.KindToolNotFound, err, time.Since(start)), nil
	}

	out, err := os.Create(destPath) //nolint:gosec // path is built from the resolved profile
	if err != nil {
		return models.Failed(models.KindDirectoryUnwritable,
			models.WrapError(models.KindDirectoryUnwritable, err, "cannot create %s", destPath),
			time.Since(start)), nil
	}

	result, runErr := s.exec.Run(ctx, executor.Request{
		Path:    pgDump,
		Args:    dumpArgs(profile, opts.Format),
		Env:     pgEnv(profile),
		Stdout:  out,
		Timeout: opts.Timeout,
	})
	closeErr := out.Close()

	if runErr != nil {
		s.removePartial(destPath)
		return models.Failed(models.KindUnknownFailure, runErr, time.Since(start)), nil
	}
	if !result.Success() {
		s.removePartial(destPath)
		kind := executor.Classify(result)
		outcome := models.Failed(kind,
			models.NewError(kind, "pg_dump exited with code %d: %s", result.ExitCode, lastLine(result.Stderr)),
			time.Since(start))
		outcome.Process = result
		return outcome, nil
	}
	if closeErr != nil {
		s.removePartial(destPath)
		return models.Failed(models.KindDirectoryUnwritable,
			models.WrapError(models.KindDirectoryUnwritable, closeErr, "cannot finish writing %s", destPath),
			time.Since(start)), nil
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		s.removePartial(destPath)
		outcome := models.Failed(models.KindEmptyArtifact,
			models.NewError(models.KindEmptyArtifact, "pg_dump produced an empty file for %s", profile.DBName),
			time.Since(start))
		outcome.Process = result
		return outcome, nil
	}

	created := models.BackupArtifact{
		Profile:   profile.Name,
		Timestamp: start.UTC().Truncate(time.Second),
		Path:      destPath,
		SizeBytes: info.Size(),
		Format:    opts.Format,
	}

	s.logger.Info().
		Str("profile", profile.Name).
		Str("artifact", destPath).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Dur("duration", result.Duration).
		Msg("backup completed")

	outcome := models.Succeeded(destPath, time.Since(start))
	outcome.Artifact = &created
	outcome.Process = result
	return outcome, nil
}

func dumpArgs(profile *models.Profile, format string) []string {
	args := []string{
		"-h", profile.Host,
		"-p", fmt.Sprintf("%d", profile.Port),
		"-U", profile.User,
		"-d", profile.DBName,
	}
	if format == models.FormatPlain {
		return append(args, "-Fp")
	}
	return append(args, "-Fc")
}

func pgEnv(profile *models.Profile) []string {
	env := []string{fmt.Sprintf("PGSSLMODE=%s", profile.SSLMode)}
	if profile.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", profile.Password))
	}
	return env
}

// removePartial deletes an incomplete artifact. Failure to remove is
// logged, not returned: the operation outcome already names the root cause.
func (s *Impl) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", path).Msg("could not remove partial backup file")
	}
}

// lastLine returns the final non-empty stderr line, which is where libpq
// and pg_dump put the actual error.
func lastLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
