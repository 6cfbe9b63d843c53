// Package sandboxsvc is the sandbox lifecycle and execution engine:
// container lifecycle, code execution, package installs, and file
// transfer composed onto one Manager struct.
package sandboxsvc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structured records tool handlers return. The
// handlers (internal/mcptools) translate these into wire-level error
// fields; they never escape as bare Go errors past that boundary.
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrSandboxNotFound   = errors.New("sandbox not found")
	ErrContainerGone     = errors.New("sandbox container gone")
	ErrLocalFileNotFound = errors.New("local file not found")
	ErrDownloadNotFound  = errors.New("file not found in sandbox")
)

// quotaExceededError wraps ErrQuotaExceeded with the caller's configured
// limit so the returned message names it, while
// errors.Is(err, ErrQuotaExceeded) still holds for callers that only care
// about the error kind.
type quotaExceededError struct {
	limit int
}

func (e *quotaExceededError) Error() string {
	return fmt.Sprintf("reached maximum limit of %d sandboxes", e.limit)
}

func (e *quotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// SandboxView is the user-facing projection of a registry record. It
// never carries the backing container id.
type SandboxView struct {
	SandboxID string
	UserID    string
	Name      string
	CreatedAt string
}

// ExecutionResult is what ExecuteCode returns.
type ExecutionResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Files     []string
	FileLinks []string
	Error     string
}

// CommandResult is what ExecuteCommand returns.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// InstallState is the install table's value type.
type InstallState string

const (
	InstallStateInstalling InstallState = "installing"
	InstallStateSuccess    InstallState = "success"
	InstallStateFailed     InstallState = "failed"
	InstallStateNotFound   InstallState = "not_found"
	InstallStateError      InstallState = "error"
)

// InstallStatus is the record keyed by (sandbox_id, package) in the
// in-memory install table.
type InstallStatus struct {
	Package          string
	State            InstallState
	StartedAt        string
	EndedAt          string
	Message          string
	Stderr           string
	Complete         bool
	AlreadyInstalled bool
	ElapsedSeconds   float64
}

// DeleteResult is what Delete returns.
type DeleteResult struct {
	Success      bool
	Message      string
	RemovedCount int
}
