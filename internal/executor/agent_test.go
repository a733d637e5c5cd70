package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"flowrun/internal"
	"flowrun/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workDir = filepath.FromSlash("/work")

type fakeSpawner struct {
	detached []Command
	awaited  []Command
	handle   *Handle
	err      error
	run      func(Command) (int, error)
}

func (f *fakeSpawner) SpawnDetached(cmd Command) (*Handle, error) {
	f.detached = append(f.detached, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if f.handle == nil {
		f.handle = NewHandle(42)
	}
	return f.handle, nil
}

func (f *fakeSpawner) SpawnAwaited(_ context.Context, cmd Command) (int, error) {
	f.awaited = append(f.awaited, cmd)
	if f.err != nil {
		return -1, f.err
	}
	if f.run == nil {
		return 0, nil
	}
	return f.run(cmd)
}

func (f *fakeSpawner) calls() int {
	return len(f.detached) + len(f.awaited)
}

func testDefinition() *internal.TaskDefinition {
	return &internal.TaskDefinition{
		Name:       "scrape",
		Template:   "Open {{url}} into {{outputDir}}",
		Params:     map[string]internal.ParameterSpec{"url": {Kind: internal.KindString, Required: true}},
		ParamOrder: []string{"url"},
		Capture: internal.CaptureSpec{
			Data:    "{{outputDir}}/data.json",
			Console: &internal.ConsoleCapture{Output: "{{outputDir}}/console.log"},
		},
	}
}

func newTestManager(sp Spawner, fsys afero.Fs, opts ...Option) *Manager {
	base := []Option{
		WithSpawner(sp),
		WithFs(fsys),
		WithAgent([]string{"agent", "--print"}),
		WithLivenessWindow(20 * time.Millisecond),
		WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
	}
	m := NewManager(append(base, opts...)...)
	m.newID = func() string { return "run-1" }
	return m
}

func request(params map[string]any) internal.ExecutionRequest {
	req := internal.NewExecutionRequest(params)
	req.WorkDir = workDir
	return req
}

func TestManager_Execute_PreExecution(t *testing.T) {
	t.Run("Should reject invalid parameters without side effects", func(t *testing.T) {
		sp := &fakeSpawner{}
		fsys := afero.NewMemMapFs()
		out, err := newTestManager(sp, fsys).Execute(context.Background(), testDefinition(), request(map[string]any{"x": 1}))
		require.Error(t, err)
		assert.ErrorIs(t, err, internal.ErrInvalidParameters)
		assert.False(t, out.Succeeded)
		assert.Equal(t, internal.StateParamsInvalid, out.State)
		require.Len(t, out.Issues, 2)
		assert.Contains(t, out.Error, "url: required parameter is missing")
		assert.Zero(t, sp.calls())
		exists, _ := afero.DirExists(fsys, filepath.Join(workDir, "output"))
		assert.False(t, exists)
	})

	t.Run("Should compose without writing or spawning on a dry run", func(t *testing.T) {
		sp := &fakeSpawner{}
		fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
		req := request(map[string]any{"url": "https://x"})
		req.DryRun = true
		out, err := newTestManager(sp, fsys).Execute(context.Background(), testDefinition(), req)
		require.NoError(t, err)
		assert.True(t, out.Succeeded)
		assert.Equal(t, internal.StateDryRun, out.State)
		wantDir := filepath.Join(workDir, "output", "scrape")
		assert.Equal(t, wantDir, out.OutputDir)
		assert.True(t, strings.HasPrefix(out.Prompt, "Open https://x into "+wantDir))
		assert.Zero(t, sp.calls())
	})
}

func TestManager_Execute_Background(t *testing.T) {
	t.Run("Should detach the agent and report success", func(t *testing.T) {
		sp := &fakeSpawner{}
		fsys := afero.NewMemMapFs()
		rec := metrics.New()
		out, err := newTestManager(sp, fsys, WithMetrics(rec)).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
		require.NoError(t, err)
		assert.True(t, out.Succeeded)
		assert.Equal(t, internal.StateSucceeded, out.State)
		assert.Equal(t, "run-1", out.RunID)
		assert.Nil(t, out.CapturedFiles)

		exists, _ := afero.DirExists(fsys, out.OutputDir)
		assert.True(t, exists)

		require.Len(t, sp.detached, 1)
		cmd := sp.detached[0]
		assert.Equal(t, "agent", cmd.Path)
		require.Len(t, cmd.Args, 2)
		assert.Equal(t, "--print", cmd.Args[0])
		assert.Equal(t, out.Prompt, cmd.Args[1])
		assert.Equal(t, workDir, cmd.Dir)
		assert.Contains(t, cmd.Env, RunIDEnv+"=run-1")
		assert.Equal(t, 1.0, testutil.ToFloat64(rec.RunsTotal.WithLabelValues("scrape", "background", "succeeded")))
	})

	t.Run("Should report an agent that fails inside the liveness window", func(t *testing.T) {
		h := NewHandle(7)
		h.Finish(3, nil)
		sp := &fakeSpawner{handle: h}
		out, err := newTestManager(sp, afero.NewMemMapFs()).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
		require.Error(t, err)
		assert.ErrorIs(t, err, internal.ErrNonZeroExit)
		assert.False(t, out.Succeeded)
		assert.Equal(t, internal.StateFailed, out.State)
		assert.Equal(t, 3, out.ExitCode)
		assert.Equal(t, "agent exited with code 3", out.Error)
	})

	t.Run("Should stay optimistic when the window is disabled", func(t *testing.T) {
		h := NewHandle(7)
		h.Finish(3, nil)
		sp := &fakeSpawner{handle: h}
		out, err := newTestManager(sp, afero.NewMemMapFs(), WithLivenessWindow(0)).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
		require.NoError(t, err)
		assert.True(t, out.Succeeded)
	})

	t.Run("Should show the indicator during the window", func(t *testing.T) {
		var started, stopped int
		indicator := func(string) func() {
			started++
			return func() { stopped++ }
		}
		_, err := newTestManager(&fakeSpawner{}, afero.NewMemMapFs(), WithIndicator(indicator)).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
		require.NoError(t, err)
		assert.Equal(t, 1, started)
		assert.Equal(t, 1, stopped)
	})

	t.Run("Should surface spawn failures after creating the directory", func(t *testing.T) {
		sp := &fakeSpawner{err: &internal.SpawnError{Command: "agent", Cause: exec.ErrNotFound}}
		fsys := afero.NewMemMapFs()
		out, err := newTestManager(sp, fsys).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
		assert.ErrorIs(t, err, internal.ErrSpawnFailure)
		assert.Equal(t, internal.StateFailed, out.State)
		assert.Contains(t, out.Error, "failed to start agent")
		exists, _ := afero.DirExists(fsys, out.OutputDir)
		assert.True(t, exists)
	})
}

func TestManager_Execute_Foreground(t *testing.T) {
	t.Run("Should stream output and list captured files", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		var stdout bytes.Buffer
		sp := &fakeSpawner{run: func(cmd Command) (int, error) {
			fmt.Fprint(cmd.Stdout, "working")
			dataPath := filepath.Join(cmd.Dir, "output", "scrape", "data.json")
			return 0, afero.WriteFile(fsys, dataPath, []byte("{}"), 0o644)
		}}
		req := request(map[string]any{"url": "u"})
		req.Background = false
		m := newTestManager(sp, fsys, WithOutput(&stdout, &bytes.Buffer{}))
		calls := 0
		m.now = func() time.Time {
			calls++
			return time.Unix(int64(calls), 0)
		}

		out, err := m.Execute(context.Background(), testDefinition(), req)
		require.NoError(t, err)
		assert.True(t, out.Succeeded)
		assert.Equal(t, internal.StateSucceeded, out.State)
		assert.Equal(t, "working", stdout.String())
		assert.Equal(t, time.Second, out.Duration)
		require.NotNil(t, out.CapturedFiles)
		assert.Equal(t, filepath.Join(out.OutputDir, "data.json"), out.CapturedFiles.Data)
		assert.Empty(t, out.CapturedFiles.Console)
	})

	t.Run("Should fail with the agent's error output", func(t *testing.T) {
		var stderr bytes.Buffer
		sp := &fakeSpawner{run: func(cmd Command) (int, error) {
			fmt.Fprint(cmd.Stdout, "partial")
			fmt.Fprint(cmd.Stderr, "boom\n")
			return 2, nil
		}}
		req := request(map[string]any{"url": "u"})
		req.Background = false
		out, err := newTestManager(sp, afero.NewMemMapFs(), WithOutput(&bytes.Buffer{}, &stderr)).Execute(context.Background(), testDefinition(), req)
		assert.ErrorIs(t, err, internal.ErrNonZeroExit)
		assert.False(t, out.Succeeded)
		assert.Equal(t, 2, out.ExitCode)
		assert.Equal(t, "boom", out.Error)
		assert.Equal(t, "boom\n", stderr.String())
		assert.Nil(t, out.CapturedFiles)
	})

	t.Run("Should fall back to stdout when stderr is empty", func(t *testing.T) {
		sp := &fakeSpawner{run: func(cmd Command) (int, error) {
			fmt.Fprint(cmd.Stdout, "only stdout")
			return 1, nil
		}}
		req := request(map[string]any{"url": "u"})
		req.Background = false
		out, _ := newTestManager(sp, afero.NewMemMapFs()).Execute(context.Background(), testDefinition(), req)
		assert.Equal(t, "only stdout", out.Error)
	})
}

func TestManager_EnvFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(workDir, ".env"), []byte("FLOWRUN_TEST_DOTENV=from-file\n"), 0o644))
	sp := &fakeSpawner{}
	_, err := newTestManager(sp, fsys).Execute(context.Background(), testDefinition(), request(map[string]any{"url": "u"}))
	require.NoError(t, err)
	require.Len(t, sp.detached, 1)
	assert.True(t, slices.Contains(sp.detached[0].Env, "FLOWRUN_TEST_DOTENV=from-file"))
}

func TestEnsureDir_Idempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	dir := filepath.Join(workDir, "output", "a")
	require.NoError(t, EnsureDir(fsys, dir))
	require.NoError(t, EnsureDir(fsys, dir))
	entries, err := afero.ReadDir(fsys, filepath.Join(workDir, "output"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildArgs(t *testing.T) {
	assert.Equal(t, []string{"-p", "hi"}, BuildArgs([]string{"-p"}, "hi"))
	assert.Equal(t, []string{"--task=hi", "-v"}, BuildArgs([]string{"--task={prompt}", "-v"}, "hi"))
	assert.Equal(t, []string{"hi"}, BuildArgs(nil, "hi"))
}

func TestOutputDir(t *testing.T) {
	def := &internal.TaskDefinition{Name: "n"}
	assert.Equal(t, filepath.Join(workDir, "output", "n"), OutputDir(def, workDir, ""))
	assert.Equal(t, filepath.Join(workDir, "custom"), OutputDir(def, workDir, "custom"))
	abs := filepath.Join(workDir, "elsewhere")
	assert.Equal(t, abs, OutputDir(def, "/ignored", abs))
}

func TestLimitedBuffer(t *testing.T) {
	b := newLimitedBuffer(4)
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, "abcd\n[output truncated]", b.String())
}

func TestHandle_FinishOnce(t *testing.T) {
	h := NewHandle(1)
	h.Finish(2, nil)
	h.Finish(5, errors.New("ignored"))
	<-h.Done()
	code, err := h.Result()
	assert.Equal(t, 2, code)
	assert.NoError(t, err)
}
