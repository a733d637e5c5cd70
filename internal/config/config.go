package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

const (
	DirEnv       = "FLOWRUN_CONFIG_DIR"
	WorkflowsDir = "workflows"
	dirName      = ".flowrun"
)

type AgentConfig struct {
	// Command is the agent command line, split with shell quoting rules.
	Command string `yaml:"command"`
}

type Config struct {
	Agent          AgentConfig `yaml:"agent"`
	SearchPaths    []string    `yaml:"search_paths"`
	MaxDepth       int         `yaml:"max_depth"`
	LivenessWindow string      `yaml:"liveness_window"`
	LogLevel       string      `yaml:"log_level"`
	LogFormat      string      `yaml:"log_format"`
	MetricsFile    string      `yaml:"metrics_file"`
	EnvFile        string      `yaml:"env_file"`
}

func Default() *Config {
	return &Config{
		MaxDepth:       2,
		LivenessWindow: "500ms",
		LogLevel:       "info",
		LogFormat:      "text",
		EnvFile:        ".env",
	}
}

// Path returns the config file location: $FLOWRUN_CONFIG_DIR/config.yaml or
// ~/.flowrun/config.yaml.
func Path() string {
	if v := strings.TrimSpace(os.Getenv(DirEnv)); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, dirName, "config.yaml")
}

// Load reads the config file at path, applies FLOWRUN_* overrides and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if v := os.Getenv("FLOWRUN_AGENT"); v != "" {
		c.Agent.Command = v
	}
	if v := os.Getenv("FLOWRUN_SEARCH_PATHS"); v != "" {
		c.SearchPaths = filepath.SplitList(v)
	}
	if v := os.Getenv("FLOWRUN_MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FLOWRUN_MAX_DEPTH: %w", err)
		}
		c.MaxDepth = n
	}
	if v := os.Getenv("FLOWRUN_LIVENESS_WINDOW"); v != "" {
		c.LivenessWindow = v
	}
	if v := os.Getenv("FLOWRUN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FLOWRUN_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("FLOWRUN_METRICS_FILE"); v != "" {
		c.MetricsFile = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if _, err := c.Liveness(); err != nil {
		return err
	}
	if _, err := c.AgentArgv(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Liveness parses liveness_window. "0" disables the check.
func (c *Config) Liveness() (time.Duration, error) {
	if strings.TrimSpace(c.LivenessWindow) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.LivenessWindow))
	if err != nil {
		return 0, fmt.Errorf("liveness_window: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("liveness_window must not be negative, got %s", d)
	}
	return d, nil
}

// AgentArgv splits agent.command. An empty command returns nil so callers keep their default.
func (c *Config) AgentArgv() ([]string, error) {
	if strings.TrimSpace(c.Agent.Command) == "" {
		return nil, nil
	}
	argv, err := shlex.Split(c.Agent.Command)
	if err != nil {
		return nil, fmt.Errorf("agent.command: %w", err)
	}
	return argv, nil
}

func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}

// SearchRoots returns the definition roots in priority order: the project's workflows
// folder, the configured search paths, then the user's global folder.
func (c *Config) SearchRoots(cwd string) []string {
	roots := []string{filepath.Join(cwd, WorkflowsDir)}
	home, _ := os.UserHomeDir()
	for _, p := range c.SearchPaths {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, expandHome(p, home))
		}
	}
	if home != "" {
		roots = append(roots, filepath.Join(home, dirName, WorkflowsDir))
	}
	return roots
}

func expandHome(p, home string) string {
	if home == "" {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
