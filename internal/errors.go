package internal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedDefinition = errors.New("malformed definition")
	ErrDefinitionNotFound  = errors.New("definition not found")
	ErrSpawnFailure        = errors.New("agent could not be started")
	ErrNonZeroExit         = errors.New("agent exited with non-zero status")
)

type MalformedDefinitionError struct {
	Path   string
	Reason string
}

func (e *MalformedDefinitionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed definition: %s", e.Reason)
	}
	return fmt.Sprintf("malformed definition %s: %s", e.Path, e.Reason)
}

func (e *MalformedDefinitionError) Is(target error) bool {
	return target == ErrMalformedDefinition
}

// NewMalformed builds a MalformedDefinitionError with a formatted reason.
func NewMalformed(path, format string, args ...any) error {
	return &MalformedDefinitionError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

type DefinitionNotFoundError struct {
	Name  string
	Roots []string
}

func (e *DefinitionNotFoundError) Error() string {
	if len(e.Roots) == 0 {
		return fmt.Sprintf("workflow %q not found", e.Name)
	}
	return fmt.Sprintf("workflow %q not found (searched: %s)", e.Name, strings.Join(e.Roots, ", "))
}

func (e *DefinitionNotFoundError) Is(target error) bool {
	return target == ErrDefinitionNotFound
}

type SpawnError struct {
	Command string
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Cause)
}

func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailure
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	if strings.TrimSpace(e.Output) == "" {
		return fmt.Sprintf("agent exited with code %d", e.Code)
	}
	return strings.TrimRight(e.Output, "\n")
}

func (e *ExitError) Is(target error) bool {
	return target == ErrNonZeroExit
}

var ErrInvalidParameters = errors.New("invalid parameters")

// InvalidParametersError carries every validation issue of one run request.
type InvalidParametersError struct {
	Workflow string
	Issues   []Issue
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters for %q:\n%s", e.Workflow, FormatIssues(e.Issues))
}

func (e *InvalidParametersError) Is(target error) bool {
	return target == ErrInvalidParameters
}

// FormatIssues renders issues one per line, indented, for terminal output.
func FormatIssues(issues []Issue) string {
	var b strings.Builder
	for i, is := range issues {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "  - %s: %s", is.Param, is.Message)
	}
	return b.String()
}
