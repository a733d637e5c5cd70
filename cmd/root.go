package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"flowrun/internal"
	"flowrun/internal/config"
	"flowrun/internal/discovery"
	"flowrun/internal/metrics"
	"flowrun/internal/util"

	"github.com/spf13/cobra"
)

var (
	cfg      = config.Default()
	recorder = metrics.New()
	ui       = newUI()

	logLevel string
	logJSON  bool
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "flowrun",
	Short: "Run parameterized browser workflows through an AI agent",
	Long: `flowrun loads workflow definitions, checks the parameters you pass against their
schema, composes a single prompt and hands it to the configured agent.

Workflows are looked up in ./workflows, the configured search paths and
~/.flowrun/workflows, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.DisableFlagParsing {
			scanGlobalFlags(args)
		}
		return setup()
	},
}

// Execute runs the command tree and reports a failure on stderr. It returns the process
// exit code.
func Execute() int {
	defer util.CloseLogFile()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
}

// scanGlobalFlags picks the persistent flags out of arguments cobra did not parse.
// Parse errors are left for the command to report.
func scanGlobalFlags(args []string) {
	inv, err := parseInvocation(args, nil, nil)
	if err != nil {
		return
	}
	if v := inv.flag("log-level"); v != "" {
		logLevel = v
	}
	if inv.enabled("log-json") {
		logJSON = true
	}
	if v := inv.flag("log-file"); v != "" {
		logFile = v
	}
}

func setup() error {
	c, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if logJSON {
		c.LogFormat = "json"
	}
	cfg = c
	util.Setup(os.Stderr, c.LogLevel, c.JSONLogs())
	if logFile != "" {
		if err := util.SetLogFile(logFile); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}
	return nil
}

// newResolver searches roots when given, otherwise the configured search roots.
func newResolver(roots ...string) (*discovery.Resolver, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		roots = cfg.SearchRoots(cwd)
	}
	return discovery.New(roots, discovery.WithBaseDir(cwd), discovery.WithMaxDepth(cfg.MaxDepth)), nil
}

func resolve(name string) (*internal.ResolvedDefinition, error) {
	r, err := newResolver()
	if err != nil {
		return nil, err
	}
	rd, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	util.Logger().Debug("resolved workflow", "name", rd.Definition.Name, "path", rd.Path)
	return rd, nil
}

func absDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}
