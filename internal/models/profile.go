// Package models contains the data structures used throughout koggi.
package models

import (
	"net"
	"strconv"
)

// Profile field names as they appear in KOGGI_<PROFILE>_<FIELD> variables.
const (
	FieldDBName     = "DB_NAME"
	FieldDBUser     = "DB_USER"
	FieldDBPassword = "DB_PASSWORD"
	FieldDBHost     = "DB_HOST"
	FieldDBPort     = "DB_PORT"
	FieldSSLMode    = "SSL_MODE"
	FieldBackupDir  = "BACKUP_DIR"
)

// ProfileSpec holds the raw, possibly incomplete field values for a
// profile as they were found in the environment. Specs are validated
// only when the profile is actually resolved for use.
type ProfileSpec struct {
	Name      string // canonical (upper-case) profile name
	DBName    string
	User      string
	Password  string
	Host      string
	Port      string // unparsed; validated at resolve time
	SSLMode   string
	BackupDir string
}

// Profile is a fully validated connection profile. Profiles are built
// once per invocation and never mutated afterwards.
type Profile struct {
	Name      string
	DBName    string
	User      string
	Password  string // secret; must only ever reach a subprocess via env
	Host      string
	Port      int
	SSLMode   string
	BackupDir string
}

// Addr returns the host:port string for log output.
func (p Profile) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}
