package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// PathResolution indicates a path resolved outside the repository root
	PathResolution ErrorCode = "PATH_RESOLUTION"
	// MalformedHistoryOutput indicates history output broke the expected format
	MalformedHistoryOutput ErrorCode = "MALFORMED_HISTORY_OUTPUT"
	// ExternalTool indicates the history query process failed or timed out
	ExternalTool ErrorCode = "EXTERNAL_TOOL"
	// CacheCoverage indicates a file resource had no last-modified cache entry
	CacheCoverage ErrorCode = "CACHE_COVERAGE"
	// NotARepository indicates the location is not inside a git work tree
	NotARepository ErrorCode = "NOT_A_REPOSITORY"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// AlreadyExists indicates a file that should be created already exists
	AlreadyExists ErrorCode = "ALREADY_EXISTS"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	Tool        string        `json:"tool,omitempty"`
}

// RpError represents an error with code, message, and suggestions
type RpError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewRpError creates a new RpError
func NewRpError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *RpError {
	return &RpError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Error implements the error interface
func (e *RpError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *RpError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *RpError) WithDetails(details interface{}) *RpError {
	e.Details = details
	return e
}

// NewPathResolutionError reports a path that does not lie inside the repository root.
func NewPathResolutionError(path, scanRoot, repoRoot string) *RpError {
	return NewRpError(
		PathResolution,
		fmt.Sprintf("Path %q is outside the repository root", path),
		nil,
		nil,
	).WithDetails(map[string]interface{}{
		"path":     path,
		"scanRoot": scanRoot,
		"repoRoot": repoRoot,
	})
}

// NewMalformedHistoryError reports history output that does not follow the
// timestamp/blank/paths/blank layout. line is 1-based.
func NewMalformedHistoryError(line int, content, reason string) *RpError {
	return NewRpError(
		MalformedHistoryOutput,
		fmt.Sprintf("Malformed history output at line %d: %s", line, reason),
		nil,
		nil,
	).WithDetails(map[string]interface{}{
		"line":    line,
		"content": content,
	})
}

// NewExternalToolError reports a failed or timed-out history query.
func NewExternalToolError(args []string, chunk []string, stderr string, cause error, timedOut bool) *RpError {
	message := "History query failed"
	if timedOut {
		message = "History query timed out"
	}
	return NewRpError(
		ExternalTool,
		message,
		cause,
		GetSuggestedFixes(ExternalTool),
	).WithDetails(map[string]interface{}{
		"args":     args,
		"paths":    chunk,
		"stderr":   strings.TrimSpace(stderr),
		"timedOut": timedOut,
	})
}

// NewCacheCoverageError reports a file resource missing from the last-modified cache.
func NewCacheCoverageError(path string) *RpError {
	return NewRpError(
		CacheCoverage,
		fmt.Sprintf("No last-modified entry for file %q", path),
		nil,
		nil,
	).WithDetails(map[string]interface{}{
		"path": path,
	})
}

// IsCode reports whether err, or any error it wraps, is an RpError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var rpErr *RpError
	if stderrors.As(err, &rpErr) {
		return rpErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first RpError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var rpErr *RpError
	if stderrors.As(err, &rpErr) {
		return rpErr.Code
	}
	return ""
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ExternalTool: {
		{
			Type:        InstallTool,
			Tool:        "git",
			Description: "Make sure git is installed and on PATH",
		},
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Verify the repository is readable",
		},
	},
	NotARepository: {
		{
			Type:        RunCommand,
			Command:     "git rev-parse --show-toplevel",
			Safe:        true,
			Description: "Check that the path is inside a git work tree",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "rp config show",
			Safe:        true,
			Description: "Inspect the effective configuration",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
