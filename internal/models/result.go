package models

import "time"

// ProcessResult holds the outcome of one external tool invocation.
type ProcessResult struct {
	ExitCode int
	Stderr   string // bounded to the last few KiB
	Duration time.Duration
	TimedOut bool
}

// Success reports whether the process completed with exit code 0.
func (r *ProcessResult) Success() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// OperationOutcome is the result an orchestrator returns to its caller.
// Exactly one of the two shapes applies: Success with an Artifact (backup)
// or Target description (restore, probe), or a Failure carrying the kind,
// the wrapped error and the underlying process result if one exists.
type OperationOutcome struct {
	Success  bool
	Kind     FailureKind // empty when Success
	Err      error       // nil when Success
	Artifact *BackupArtifact
	Target   string
	Process  *ProcessResult
	Duration time.Duration
}

// Succeeded builds a success outcome with a target description.
func Succeeded(target string, d time.Duration) *OperationOutcome {
	return &OperationOutcome{Success: true, Target: target, Duration: d}
}

// Failed builds a failure outcome.
func Failed(kind FailureKind, err error, d time.Duration) *OperationOutcome {
	return &OperationOutcome{Kind: kind, Err: err, Duration: d}
}
