package models

import "time"

// Backup format constants.
const (
	FormatCustom = "custom"
	FormatPlain  = "plain"
)

// BackupArtifact represents one completed backup file on disk. Artifacts
// live under their profile's backup directory and embed their creation
// timestamp in the filename, so lexical order equals chronological order.
type BackupArtifact struct {
	Profile   string
	Timestamp time.Time // UTC, as embedded in the filename
	Path      string
	SizeBytes int64
	Format    string // "custom" or "plain"
}
