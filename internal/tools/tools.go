// Package tools locates the external PostgreSQL client binaries.
package tools

import (
	"os"
	"os/exec"

	"github.com/koggi/koggi/internal/models"
)

// External binary names.
const (
	PgDump    = "pg_dump"
	Psql      = "psql"
	PgRestore = "pg_restore"
)

// envOverrides maps each binary to the variable that may pin its path,
// e.g. KOGGI_PG_DUMP=/opt/pg16/bin/pg_dump.
var envOverrides = map[string]string{
	PgDump:    "KOGGI_PG_DUMP",
	Psql:      "KOGGI_PSQL",
	PgRestore: "KOGGI_PG_RESTORE",
}

// Lookup resolves a client binary to an executable path. An environment
// override wins over the search path. Returns a KindToolNotFound error
// when the binary cannot be found.
func Lookup(name string) (string, error) {
	if envVar, ok := envOverrides[name]; ok {
		if path := os.Getenv(envVar); path != "" {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
			return "", models.NewError(models.KindToolNotFound,
				"%s points to %q, which does not exist", envVar, path)
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", models.NewError(models.KindToolNotFound,
			"%s not found in PATH; install the PostgreSQL client tools or set %s", name, envOverrides[name])
	}
	return path, nil
}
