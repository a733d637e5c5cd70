// Package executor hands a composed prompt to the external agent, detached in the background
// or awaited in the foreground, and reports the run as an ExecutionOutcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowrun/internal"
	"flowrun/internal/metrics"
	"flowrun/internal/prompt"
	"flowrun/internal/schema"
	"flowrun/internal/util"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	// PromptPlaceholder marks the agent argument that receives the prompt. Without it the
	// prompt is appended as the last argument.
	PromptPlaceholder = "{prompt}"
	// RunIDEnv is exported to the agent process.
	RunIDEnv = "FLOWRUN_RUN_ID"

	DefaultLivenessWindow = 500 * time.Millisecond
	OutputRoot            = "output"

	maxCapturedOutput = 1 << 20
)

// DefaultAgent runs the claude CLI in print mode with plain text output.
var DefaultAgent = []string{"claude", "--print", "--output-format", "text"}

type Manager struct {
	spawner   Spawner
	fs        afero.Fs
	agent     []string
	liveness  time.Duration
	envFile   string
	stdout    io.Writer
	stderr    io.Writer
	metrics   *metrics.Recorder
	indicator func(msg string) (stop func())
	newID     func() string
	now       func() time.Time
}

type Option func(*Manager)

func WithSpawner(s Spawner) Option {
	return func(m *Manager) { m.spawner = s }
}

func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) { m.fs = fsys }
}

// WithAgent sets the agent argv. An empty argv keeps the default.
func WithAgent(argv []string) Option {
	return func(m *Manager) {
		if len(argv) > 0 {
			m.agent = argv
		}
	}
}

// WithLivenessWindow sets how long a background run is watched for an early failure.
// Zero disables the check.
func WithLivenessWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.liveness = d
		}
	}
}

// WithEnvFile sets the dotenv file merged into the agent environment. Relative paths are
// resolved against the run's work directory.
func WithEnvFile(path string) Option {
	return func(m *Manager) { m.envFile = path }
}

// WithOutput sets where foreground runs stream the agent's output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(m *Manager) {
		m.stdout = stdout
		m.stderr = stderr
	}
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithIndicator installs a progress indicator shown during the liveness window.
func WithIndicator(start func(msg string) (stop func())) Option {
	return func(m *Manager) { m.indicator = start }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		spawner:  OSSpawner{},
		fs:       afero.NewOsFs(),
		agent:    DefaultAgent,
		liveness: DefaultLivenessWindow,
		envFile:  ".env",
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureDir creates dir and its parents. It succeeds when dir already exists.
func EnsureDir(fsys afero.Fs, dir string) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

// OutputDir returns the absolute output directory of a run of def.
func OutputDir(def *internal.TaskDefinition, workDir, override string) string {
	dir := override
	if dir == "" {
		dir = filepath.Join(OutputRoot, def.Name)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workDir, dir)
	}
	return filepath.Clean(dir)
}

// BuildArgs returns the agent arguments carrying text, substituting PromptPlaceholder or
// appending text when no argument contains it.
func BuildArgs(argv []string, text string) []string {
	args := make([]string, 0, len(argv))
	substituted := false
	for _, a := range argv {
		if strings.Contains(a, PromptPlaceholder) {
			a = strings.ReplaceAll(a, PromptPlaceholder, text)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, text)
	}
	return args
}

// Execute validates req against def, composes the prompt and runs the agent. The returned
// outcome is never nil; err is non-nil exactly when the outcome did not succeed.
func (m *Manager) Execute(ctx context.Context, def *internal.TaskDefinition, req internal.ExecutionRequest) (*internal.ExecutionOutcome, error) {
	out := &internal.ExecutionOutcome{State: internal.StateRequested, RunID: m.newID()}
	log := util.Logger().With("workflow", def.Name, "run", out.RunID)

	check := schema.Check(def, req.Params)
	if !check.Valid {
		m.metrics.ObserveIssues(def.Name, check.Errors)
		err := &internal.InvalidParametersError{Workflow: def.Name, Issues: check.Errors}
		out.State = internal.StateParamsInvalid
		out.Issues = check.Errors
		out.Error = err.Error()
		log.Debug("parameters rejected", "issues", len(check.Errors))
		return out, err
	}

	workDir := req.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return m.fail(out, err)
		}
		workDir = wd
	}
	out.OutputDir = OutputDir(def, workDir, req.OutputDir)
	out.Prompt = prompt.Compose(def, check.Resolved, prompt.Options{OutputDir: out.OutputDir})

	if req.DryRun {
		out.State = internal.StateDryRun
		out.Succeeded = true
		return out, nil
	}

	start := m.now()
	defer func() {
		out.Duration = m.now().Sub(start)
		m.metrics.ObserveRun(def.Name, req.Background, out.State, out.Duration)
	}()

	if err := EnsureDir(m.fs, out.OutputDir); err != nil {
		return m.fail(out, err)
	}
	out.State = internal.StateDirectoryReady
	log.Debug("output directory ready", "dir", out.OutputDir)

	cmd := Command{
		Path: m.agent[0],
		Args: BuildArgs(m.agent[1:], out.Prompt),
		Dir:  workDir,
		Env:  m.environ(workDir, out.RunID),
	}
	if req.Background {
		return m.runBackground(out, cmd)
	}
	out, err := m.runForeground(ctx, out, cmd)
	if err == nil {
		out.CapturedFiles = m.capturedFiles(def, check.Resolved, out.OutputDir, workDir)
	}
	return out, err
}

func (m *Manager) runBackground(out *internal.ExecutionOutcome, cmd Command) (*internal.ExecutionOutcome, error) {
	h, err := m.spawner.SpawnDetached(cmd)
	if err != nil {
		return m.fail(out, err)
	}
	out.State = internal.StateBackgroundStarted
	util.Logger().Debug("agent detached", "run", out.RunID, "pid", h.PID)

	if m.liveness > 0 {
		stop := func() {}
		if m.indicator != nil {
			stop = m.indicator("Starting agent...")
		}
		timer := time.NewTimer(m.liveness)
		select {
		case <-h.Done():
			timer.Stop()
			stop()
			code, werr := h.Result()
			if werr != nil {
				return m.fail(out, werr)
			}
			if code != 0 {
				out.ExitCode = code
				return m.fail(out, &internal.ExitError{Code: code})
			}
		case <-timer.C:
			stop()
		}
	}
	out.State = internal.StateSucceeded
	out.Succeeded = true
	return out, nil
}

func (m *Manager) runForeground(ctx context.Context, out *internal.ExecutionOutcome, cmd Command) (*internal.ExecutionOutcome, error) {
	stdout := newLimitedBuffer(maxCapturedOutput)
	stderr := newLimitedBuffer(maxCapturedOutput)
	cmd.Stdout = io.MultiWriter(m.stdout, stdout)
	cmd.Stderr = io.MultiWriter(m.stderr, stderr)

	out.State = internal.StateForegroundRunning
	code, err := m.spawner.SpawnAwaited(ctx, cmd)
	out.ExitCode = code
	if err != nil {
		return m.fail(out, err)
	}
	if code != 0 {
		text := stderr.String()
		if strings.TrimSpace(text) == "" {
			text = stdout.String()
		}
		return m.fail(out, &internal.ExitError{Code: code, Output: text})
	}
	out.State = internal.StateSucceeded
	out.Succeeded = true
	return out, nil
}

func (m *Manager) fail(out *internal.ExecutionOutcome, err error) (*internal.ExecutionOutcome, error) {
	out.State = internal.StateFailed
	out.Succeeded = false
	out.Error = err.Error()
	return out, err
}

// environ returns the agent environment. Like godotenv.Load, variables already set in the
// process environment win over the dotenv file; the run id always wins.
func (m *Manager) environ(workDir, runID string) []string {
	var env []string
	for k, v := range m.readEnvFile(workDir) {
		env = append(env, k+"="+v)
	}
	env = append(env, os.Environ()...)
	return append(env, RunIDEnv+"="+runID)
}

func (m *Manager) readEnvFile(workDir string) map[string]string {
	if m.envFile == "" {
		return nil
	}
	path := m.envFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	f, err := m.fs.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			util.Logger().Warn("cannot open env file", "path", path, "err", err)
		}
		return nil
	}
	defer f.Close()
	vars, err := godotenv.Parse(f)
	if err != nil {
		util.Logger().Warn("ignoring env file", "path", path, "err", err)
		return nil
	}
	return vars
}

// capturedFiles lists the rendered capture destinations that exist after the run.
func (m *Manager) capturedFiles(def *internal.TaskDefinition, resolved map[string]any, outputDir, workDir string) *internal.CapturedFiles {
	dest := prompt.Destinations(def, resolved, prompt.Options{OutputDir: outputDir})
	found := false
	exists := func(p string) string {
		if p == "" {
			return ""
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(workDir, p)
		}
		if _, err := m.fs.Stat(p); err != nil {
			return ""
		}
		found = true
		return p
	}
	files := &internal.CapturedFiles{
		Network:     exists(dest.Network),
		Screenshots: exists(dest.Screenshots),
		Console:     exists(dest.Console),
		Data:        exists(dest.Data),
	}
	if !found {
		return nil
	}
	return files
}
