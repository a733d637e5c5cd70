package cmd

import (
	"fmt"

	"flowrun/internal"
	"flowrun/internal/prompt"
	"flowrun/internal/schema"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:                "prompt <workflow> [--output-dir <dir>] [--<param> <value>]...",
	Short:              "Print the prompt a run would send to the agent",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := parseInvocation(args, nil, promptValueOptions)
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
		warnShadowed(rd.Definition, promptValueOptions)
		out := schema.Check(rd.Definition, inv.params)
		if !out.Valid {
			return &internal.InvalidParametersError{Workflow: rd.Definition.Name, Issues: out.Errors}
		}
		text := prompt.Compose(rd.Definition, out.Resolved, prompt.Options{OutputDir: inv.flag("output-dir")})
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
}
