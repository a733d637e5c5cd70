package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"flowrun/internal"
	"flowrun/internal/prompt"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <workflow>",
	Short: "Show a workflow's parameters, capture targets and prompt template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rd, err := resolve(args[0])
		if err != nil {
			return err
		}
		describe(cmd.OutOrStdout(), rd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func describe(w io.Writer, rd *internal.ResolvedDefinition) {
	def := rd.Definition
	fmt.Fprintln(w, ui.title(def.Name))
	if def.Description != "" {
		fmt.Fprintf(w, "  %s\n", def.Description)
	}
	fmt.Fprintf(w, "  %s\n", ui.dim(rd.Path))

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.title("Parameters"))
	if len(def.Params) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	shadowed := shadowedParams(def, runBoolOptions, runValueOptions, promptValueOptions, validateBoolOptions)
	for _, name := range def.ParamNames() {
		spec := def.Params[name]
		var attrs string
		switch {
		case spec.Required:
			attrs = "required"
		case spec.HasDefault:
			attrs = "default: " + prompt.Format(spec.Default)
		default:
			attrs = "optional"
		}
		fmt.Fprintf(w, "  --%s %s", name, ui.dim(fmt.Sprintf("(%s, %s)", spec.Kind, attrs)))
		if spec.Description != "" {
			fmt.Fprintf(w, "  %s", spec.Description)
		}
		if slices.Contains(shadowed, name) {
			fmt.Fprintf(w, "  %s", ui.warn(fmt.Sprintf("(shadowed by the --%s option)", name)))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.title("Capture"))
	c := def.Capture
	if c.Empty() {
		fmt.Fprintln(w, "  (none)")
	}
	if n := c.Network; n != nil {
		fmt.Fprintf(w, "  network      %s -> %s\n", strings.Join(n.Patterns, ", "), orDash(n.Output))
	}
	if s := c.Screenshots; s != nil {
		line := s.Destination()
		if s.Mode == internal.ScreenshotConfigured {
			line += ui.dim(fmt.Sprintf(" (format: %s, naming: %s)", orDash(s.Format), orDash(s.Naming)))
		}
		fmt.Fprintf(w, "  screenshots  %s\n", line)
	}
	if con := c.Console; con != nil {
		levels := "all levels"
		if len(con.Levels) > 0 {
			levels = strings.Join(con.Levels, ", ")
		}
		fmt.Fprintf(w, "  console      %s -> %s\n", levels, orDash(con.Output))
	}
	if c.Data != "" {
		fmt.Fprintf(w, "  data         %s\n", c.Data)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.title("Template"))
	for _, line := range strings.Split(def.Template, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
