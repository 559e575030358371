// Package artifact implements the backup file naming scheme and the
// directory-as-manifest listing it enables. A backup for profile DEV1
// taken at 2026-08-23 14:05:09 UTC in custom format is named
// DEV1_20260823T140509Z.dump; lexical order of these names equals
// chronological order, so "latest" selection never depends on mtime.
package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/koggi/koggi/internal/models"
)

// timestampLayout renders a filesystem-safe UTC timestamp whose lexical
// order matches chronological order. The trailing Z is appended literally
// because timestamps are always converted to UTC first.
const timestampLayout = "20060102T150405"

// Extensions by backup format.
const (
	ExtCustom = "dump"
	ExtPlain  = "sql"
	// ExtLegacy is accepted on restore for artifacts written by other
	// PostgreSQL tooling; koggi never produces it.
	ExtLegacy = "backup"
)

// Filename builds the artifact filename for a profile, timestamp and
// format. The timestamp is truncated to whole seconds in UTC.
func Filename(profile string, ts time.Time, format string) string {
	ext := ExtCustom
	if format == models.FormatPlain {
		ext = ExtPlain
	}
	return profile + "_" + ts.UTC().Format(timestampLayout) + "Z." + ext
}

// Parse extracts the artifact metadata embedded in a filename. It returns
// false for files that do not follow the naming scheme for the given
// profile; such files are ignored by listing.
func Parse(profile, filename string) (models.BackupArtifact, bool) {
	var a models.BackupArtifact

	rest, ok := strings.CutPrefix(filename, profile+"_")
	if !ok {
		return a, false
	}

	stamp, ext, ok := strings.Cut(rest, ".")
	if !ok {
		return a, false
	}

	format, ok := formatForExt(strings.ToLower(ext))
	if !ok {
		return a, false
	}

	stamp, ok = strings.CutSuffix(stamp, "Z")
	if !ok {
		return a, false
	}
	ts, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return a, false
	}

	a.Profile = profile
	a.Timestamp = ts.UTC()
	a.Format = format
	return a, true
}

func formatForExt(ext string) (string, bool) {
	switch ext {
	case ExtCustom, ExtLegacy:
		return models.FormatCustom, true
	case ExtPlain:
		return models.FormatPlain, true
	default:
		return "", false
	}
}

// List returns the recognizable artifacts for a profile under dir, newest
// first by embedded timestamp. A missing directory yields an empty list,
// not an error; any other read failure is returned.
func List(dir, profile string) ([]models.BackupArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []models.BackupArtifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a, ok := Parse(profile, entry.Name())
		if !ok {
			continue
		}
		a.Path = filepath.Join(dir, entry.Name())
		if info, err := entry.Info(); err == nil {
			a.SizeBytes = info.Size()
		}
		artifacts = append(artifacts, a)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Timestamp.After(artifacts[j].Timestamp)
	})

	return artifacts, nil
}

// Latest returns the newest artifact for a profile, or false if the
// directory holds no recognizable artifact files.
func Latest(dir, profile string) (models.BackupArtifact, bool, error) {
	artifacts, err := List(dir, profile)
	if err != nil || len(artifacts) == 0 {
		return models.BackupArtifact{}, false, err
	}
	return artifacts[0], true, nil
}
