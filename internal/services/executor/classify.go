package executor

import (
	"strings"

	"github.com/koggi/koggi/internal/models"
)

// stderr fragments emitted by libpq and the client tools, lower-cased.
var (
	authHints = []string{
		"password authentication failed",
		"authentication failed",
		"no password supplied",
		"pg_hba.conf rejects connection",
	}
	networkHints = []string{
		"connection refused",
		"could not connect to server",
		"could not translate host name",
		"no route to host",
		"network is unreachable",
		"timeout expired",
		"connection timed out",
		"server closed the connection unexpectedly",
	}
	diskHints = []string{
		"no space left on device",
		"could not write to output file",
	}
)

// Classify maps a failed process result onto a failure kind using the
// captured stderr. Unrecognized output stays KindUnknownFailure so callers
// never mistake a new libpq message for a known condition.
func Classify(result *models.ProcessResult) models.FailureKind {
	if result.TimedOut {
		return models.KindTimeout
	}

	stderr := strings.ToLower(result.Stderr)
	for _, hint := range authHints {
		if strings.Contains(stderr, hint) {
			return models.KindAuthFailure
		}
	}
	for _, hint := range networkHints {
		if strings.Contains(stderr, hint) {
			return models.KindNetworkFailure
		}
	}
	for _, hint := range diskHints {
		if strings.Contains(stderr, hint) {
			return models.KindDiskFull
		}
	}

	return models.KindUnknownFailure
}
