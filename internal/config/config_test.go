package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should fall back to defaults without a file", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), c)
		d, err := c.Liveness()
		require.NoError(t, err)
		assert.Equal(t, 500*time.Millisecond, d)
	})

	t.Run("Should read the file and keep explicit zero values", func(t *testing.T) {
		path := writeConfig(t, `
agent:
  command: "my-agent --mode 'plain text'"
search_paths: [/srv/flows]
max_depth: 0
liveness_window: "0"
log_format: json
`)
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 0, c.MaxDepth)
		argv, err := c.AgentArgv()
		require.NoError(t, err)
		assert.Equal(t, []string{"my-agent", "--mode", "plain text"}, argv)
		d, err := c.Liveness()
		require.NoError(t, err)
		assert.Zero(t, d)
		assert.True(t, c.JSONLogs())
		assert.Equal(t, "info", c.LogLevel)
	})

	t.Run("Should let the environment override the file", func(t *testing.T) {
		path := writeConfig(t, "max_depth: 1\nlog_level: warn\n")
		t.Setenv("FLOWRUN_MAX_DEPTH", "4")
		t.Setenv("FLOWRUN_LOG_LEVEL", "debug")
		t.Setenv("FLOWRUN_AGENT", "other --x")
		t.Setenv("FLOWRUN_SEARCH_PATHS", "/a"+string(os.PathListSeparator)+"/b")
		t.Setenv("FLOWRUN_LIVENESS_WINDOW", "2s")
		t.Setenv("FLOWRUN_METRICS_FILE", "/tmp/flowrun.prom")
		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 4, c.MaxDepth)
		assert.Equal(t, "debug", c.LogLevel)
		assert.Equal(t, "other --x", c.Agent.Command)
		assert.Equal(t, []string{"/a", "/b"}, c.SearchPaths)
		assert.Equal(t, "2s", c.LivenessWindow)
		assert.Equal(t, "/tmp/flowrun.prom", c.MetricsFile)
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		for name, body := range map[string]string{
			"negative depth":  "max_depth: -1\n",
			"bad window":      "liveness_window: soon\n",
			"negative window": "liveness_window: -1s\n",
			"bad format":      "log_format: xml\n",
			"bad quoting":     "agent: {command: \"a 'b\"}\n",
			"bad yaml":        "max_depth: [\n",
		} {
			t.Run(name, func(t *testing.T) {
				_, err := Load(writeConfig(t, body))
				assert.Error(t, err)
			})
		}
	})

	t.Run("Should reject a non-numeric depth override", func(t *testing.T) {
		t.Setenv("FLOWRUN_MAX_DEPTH", "deep")
		_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}

func TestPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), Path())
}

func TestSearchRoots(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	c := Default()
	c.SearchPaths = []string{"~/shared", " ", "/srv/flows"}
	roots := c.SearchRoots("/proj")
	assert.Equal(t, []string{
		filepath.Join("/proj", "workflows"),
		filepath.Join(home, "shared"),
		"/srv/flows",
		filepath.Join(home, ".flowrun", "workflows"),
	}, roots)
}

func TestAgentArgv_Empty(t *testing.T) {
	argv, err := Default().AgentArgv()
	require.NoError(t, err)
	assert.Nil(t, argv)
}
