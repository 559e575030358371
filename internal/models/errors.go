package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an operation failed. Every failure an
// orchestrator reports carries exactly one kind; the CLI maps kinds to
// distinct exit codes.
type FailureKind string

const (
	KindUnknownProfile      FailureKind = "unknown_profile"
	KindMissingField        FailureKind = "missing_field"
	KindAuthFailure         FailureKind = "auth_failure"
	KindNetworkFailure      FailureKind = "network_failure"
	KindServerError         FailureKind = "server_error"
	KindTimeout             FailureKind = "timeout"
	KindToolNotFound        FailureKind = "tool_not_found"
	KindDirectoryUnwritable FailureKind = "directory_unwritable"
	KindDiskFull            FailureKind = "disk_full"
	KindEmptyArtifact       FailureKind = "empty_artifact"
	KindNoArtifactsFound    FailureKind = "no_artifacts_found"
	KindArtifactNotFound    FailureKind = "artifact_not_found"
	KindUnknownFailure      FailureKind = "unknown_failure"
)

// exitCodes maps every failure kind to a distinct nonzero exit code.
// Success is exit code 0; 1 is reserved for usage errors from cobra.
var exitCodes = map[FailureKind]int{
	KindUnknownProfile:      2,
	KindMissingField:        3,
	KindAuthFailure:         4,
	KindNetworkFailure:      5,
	KindServerError:         6,
	KindTimeout:             7,
	KindToolNotFound:        8,
	KindDirectoryUnwritable: 9,
	KindDiskFull:            10,
	KindEmptyArtifact:       11,
	KindNoArtifactsFound:    12,
	KindArtifactNotFound:    13,
	KindUnknownFailure:      14,
}

// ExitCode returns the process exit code for a failure kind.
func (k FailureKind) ExitCode() int {
	if code, ok := exitCodes[k]; ok {
		return code
	}
	return exitCodes[KindUnknownFailure]
}

// KindError is an error tagged with a failure kind.
type KindError struct {
	Kind FailureKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *KindError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *KindError) Unwrap() error { return e.Err }

// NewError builds a KindError with a formatted message.
func NewError(kind FailureKind, format string, args ...any) *KindError {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a KindError around an underlying cause.
func WrapError(kind FailureKind, err error, format string, args ...any) *KindError {
	return &KindError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind from an error chain, falling back to
// KindUnknownFailure for untagged errors.
func KindOf(err error) FailureKind {
	var kerr *KindError
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return KindUnknownFailure
}
