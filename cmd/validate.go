package cmd

import (
	"fmt"
	"maps"
	"slices"

	"flowrun/internal"
	"flowrun/internal/prompt"
	"flowrun/internal/schema"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:                "validate <workflow> [--yaml] [--<param> <value>]...",
	Short:              "Check parameters against a workflow without running it",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := parseInvocation(args, validateBoolOptions, nil)
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
		warnShadowed(rd.Definition, validateBoolOptions)
		out := schema.Check(rd.Definition, inv.params)
		w := cmd.OutOrStdout()

		if inv.enabled("yaml") {
			b, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprint(w, string(b))
			if !out.Valid {
				return fmt.Errorf("%d parameter issue(s)", len(out.Errors))
			}
			return nil
		}
		if !out.Valid {
			return &internal.InvalidParametersError{Workflow: rd.Definition.Name, Issues: out.Errors}
		}
		fmt.Fprintf(w, "%s parameters for %s are valid\n", ui.ok("[OK]"), rd.Definition.Name)
		for _, k := range slices.Sorted(maps.Keys(out.Resolved)) {
			fmt.Fprintf(w, "  %s = %s\n", k, prompt.Format(out.Resolved[k]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
