package internal

import (
	"maps"
	"slices"
	"time"
)

type ParamKind string

const (
	KindString  ParamKind = "string"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindArray   ParamKind = "array"
	KindObject  ParamKind = "object"
)

// ParseParamKind maps a declared type name (including the accepted aliases) onto a ParamKind.
func ParseParamKind(s string) (ParamKind, bool) {
	switch s {
	case "string":
		return KindString, true
	case "number":
		return KindNumber, true
	case "boolean", "bool":
		return KindBoolean, true
	case "array", "list":
		return KindArray, true
	case "object", "record", "map":
		return KindObject, true
	}
	return "", false
}

type ParameterSpec struct {
	Kind        ParamKind
	Required    bool
	Default     any
	HasDefault  bool
	Description string
}

type NetworkCapture struct {
	Patterns               []string
	Methods                []string
	Status                 []int
	ContentType            string
	Output                 string
	ExtractJSON            bool
	IncludeRequestHeaders  bool
	IncludeResponseHeaders bool
}

type ScreenshotMode int

const (
	ScreenshotSimple ScreenshotMode = iota
	ScreenshotConfigured
)

// ScreenshotCapture is either a bare destination (Simple) or a directory with format and
// naming settings (Configured). Mode selects which fields are meaningful.
type ScreenshotCapture struct {
	Mode   ScreenshotMode
	Path   string
	Dir    string
	Format string
	Naming string
}

// Destination returns the directory or path screenshots are written to, whatever the mode.
func (s ScreenshotCapture) Destination() string {
	if s.Mode == ScreenshotConfigured {
		return s.Dir
	}
	return s.Path
}

type ConsoleCapture struct {
	Levels []string
	Filter string
	Output string
}

type CaptureSpec struct {
	Network     *NetworkCapture
	Screenshots *ScreenshotCapture
	Console     *ConsoleCapture
	Data        string
}

// Empty reports whether no capture target is declared.
func (c CaptureSpec) Empty() bool {
	return c.Network == nil && c.Screenshots == nil && c.Console == nil && c.Data == ""
}

// TaskDefinition is the canonical, normalized form of a definition file. Values are not
// mutated after normalization; use the accessors to obtain copies.
type TaskDefinition struct {
	Name        string
	Description string
	Params      map[string]ParameterSpec
	ParamOrder  []string
	Capture     CaptureSpec
	Template    string
}

// ParamNames returns the declared parameter names in declaration order.
func (d *TaskDefinition) ParamNames() []string {
	if len(d.ParamOrder) == len(d.Params) {
		return slices.Clone(d.ParamOrder)
	}
	names := slices.Collect(maps.Keys(d.Params))
	slices.Sort(names)
	return names
}

type ResolvedDefinition struct {
	Definition *TaskDefinition
	Path       string
	Dir        string
}

type ExecutionRequest struct {
	Params     map[string]any
	Background bool
	WorkDir    string
	OutputDir  string
	DryRun     bool
}

// NewExecutionRequest returns a request with the default background mode.
func NewExecutionRequest(params map[string]any) ExecutionRequest {
	return ExecutionRequest{Params: params, Background: true}
}

type RunState string

const (
	StateRequested         RunState = "requested"
	StateParamsInvalid     RunState = "params_invalid"
	StateDryRun            RunState = "dry_run"
	StateDirectoryReady    RunState = "directory_ready"
	StateBackgroundStarted RunState = "background_started"
	StateForegroundRunning RunState = "foreground_running"
	StateSucceeded         RunState = "succeeded"
	StateFailed            RunState = "failed"
)

type CapturedFiles struct {
	Network     string `yaml:"network,omitempty"`
	Screenshots string `yaml:"screenshots,omitempty"`
	Console     string `yaml:"console,omitempty"`
	Data        string `yaml:"data,omitempty"`
}

// Issue is a single validation failure for one parameter.
type Issue struct {
	Param   string    `yaml:"param"`
	Kind    IssueKind `yaml:"kind"`
	Message string    `yaml:"message"`
}

type IssueKind string

const (
	IssueMissingRequired  IssueKind = "missing_required"
	IssueTypeMismatch     IssueKind = "type_mismatch"
	IssueUnknownParameter IssueKind = "unknown_parameter"
)

type ExecutionOutcome struct {
	Succeeded     bool
	State         RunState
	RunID         string
	OutputDir     string
	CapturedFiles *CapturedFiles
	Error         string
	Issues        []Issue
	Prompt        string
	ExitCode      int
	Duration      time.Duration
}
