package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowrun/internal"
	"flowrun/internal/executor"
	"flowrun/internal/metrics"
	"flowrun/internal/util"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow> [--dry-run] [--foreground] [--work-dir <dir>] [--output-dir <dir>] [--<param> <value>]...",
	Short: "Run a workflow through the agent",
	Long: `Resolve a workflow, check the given parameters and start the agent with the
composed prompt. The agent runs detached unless --foreground is set.

Every flag that is not an option of this command is a workflow parameter:
--name value, --name=value, or a bare --name meaning true.`,
	Example:            "  flowrun run scrape-prices --url https://shop.example --pages 2 --foreground",
	DisableFlagParsing: true,
	RunE:               runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	inv, err := parseInvocation(args, runBoolOptions, runValueOptions)
	if err != nil {
		return err
	}
	if inv.help {
		return cmd.Help()
	}
	name, err := inv.workflow()
	if err != nil {
		return err
	}
	rd, err := resolve(name)
	if err != nil {
		return err
	}
	warnShadowed(rd.Definition, runBoolOptions, runValueOptions)

	req := internal.NewExecutionRequest(inv.params)
	req.DryRun = inv.enabled("dry-run")
	req.Background = !inv.enabled("foreground")
	req.OutputDir = inv.flag("output-dir")
	if req.WorkDir, err = absDir(inv.flag("work-dir")); err != nil {
		return err
	}

	m, err := newManager(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !req.DryRun {
		util.Info("Running %s (%s)", rd.Definition.Name, metrics.Mode(req.Background))
	}
	out, err := m.Execute(ctx, rd.Definition, req)
	if !req.DryRun {
		if werr := recorder.WriteFile(cfg.MetricsFile); werr != nil {
			util.Logger().Warn("cannot write metrics", "path", cfg.MetricsFile, "err", werr)
		}
	}
	if err != nil {
		if out.State == internal.StateFailed {
			util.Fail("%s failed after %s (run %s)", rd.Definition.Name, out.Duration.Round(time.Millisecond), out.RunID)
		}
		return err
	}
	if !req.DryRun {
		util.Success("%s %s", rd.Definition.Name, out.State)
	}
	report(cmd.OutOrStdout(), rd.Definition.Name, req.Background, out)
	return nil
}

func newManager(stdout, stderr io.Writer) (*executor.Manager, error) {
	argv, err := cfg.AgentArgv()
	if err != nil {
		return nil, err
	}
	window, err := cfg.Liveness()
	if err != nil {
		return nil, err
	}
	return executor.NewManager(
		executor.WithAgent(argv),
		executor.WithLivenessWindow(window),
		executor.WithEnvFile(cfg.EnvFile),
		executor.WithOutput(stdout, stderr),
		executor.WithMetrics(recorder),
		executor.WithIndicator(spinnerIndicator()),
	), nil
}

func report(w io.Writer, name string, background bool, out *internal.ExecutionOutcome) {
	if out.State == internal.StateDryRun {
		fmt.Fprintln(w, out.Prompt)
		return
	}
	if background {
		fmt.Fprintf(w, "%s %s started in the background\n", ui.ok("[OK]"), name)
	} else {
		fmt.Fprintf(w, "%s %s finished in %s\n", ui.ok("[OK]"), name, out.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  %s %s\n", ui.dim("run:   "), out.RunID)
	fmt.Fprintf(w, "  %s %s\n", ui.dim("output:"), out.OutputDir)
	if files := out.CapturedFiles; files != nil {
		fmt.Fprintln(w, ui.title("Captured"))
		for _, f := range []struct{ label, path string }{
			{"network", files.Network},
			{"screenshots", files.Screenshots},
			{"console", files.Console},
			{"data", files.Data},
		} {
			if f.path != "" {
				fmt.Fprintf(w, "  %-12s %s\n", f.label, f.path)
			}
		}
	}
}
