package executor

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"flowrun/internal"
)

// outputDrainDelay bounds how long an awaited run keeps reading output after the agent
// exits while a process it left behind still holds the pipes.
const outputDrainDelay = 2 * time.Second

// Command describes one agent invocation.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Handle tracks a detached process. Done is closed once the process has been reaped.
type Handle struct {
	PID int

	done     chan struct{}
	once     sync.Once
	exitCode int
	err      error
}

// NewHandle returns an open handle; Spawner implementations finish it with Finish.
func NewHandle(pid int) *Handle {
	return &Handle{PID: pid, exitCode: -1, done: make(chan struct{})}
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Finish records the exit result. Later calls are ignored.
func (h *Handle) Finish(code int, err error) {
	h.once.Do(func() {
		h.exitCode = code
		h.err = err
		close(h.done)
	})
}

// Result returns the exit code and wait error. It is only meaningful after Done is closed.
func (h *Handle) Result() (int, error) {
	return h.exitCode, h.err
}

// Spawner is the process port of the execution manager.
type Spawner interface {
	// SpawnDetached starts cmd in its own session with stdio discarded and returns at once.
	SpawnDetached(cmd Command) (*Handle, error)
	// SpawnAwaited runs cmd to completion. A non-nil error means the process could not be
	// started or was cancelled; otherwise the exit code is returned.
	SpawnAwaited(ctx context.Context, cmd Command) (int, error)
}

type OSSpawner struct{}

func (OSSpawner) SpawnDetached(c Command) (*Handle, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return nil, &internal.SpawnError{Command: c.Path, Cause: err}
	}
	h := NewHandle(cmd.Process.Pid)
	go func() {
		h.Finish(exitCode(cmd.Wait()))
	}()
	return h, nil
}

func (OSSpawner) SpawnAwaited(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.SysProcAttr = groupAttr()
	cmd.Cancel = func() error {
		return killGroup(cmd.Process)
	}
	cmd.WaitDelay = outputDrainDelay
	if err := cmd.Start(); err != nil {
		return -1, &internal.SpawnError{Command: c.Path, Cause: err}
	}
	werr := cmd.Wait()
	if errors.Is(werr, exec.ErrWaitDelay) {
		werr = nil
	}
	code, err := exitCode(werr)
	if werr == nil && cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return code, ctx.Err()
	}
	return code, err
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
