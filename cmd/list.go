package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listPaths []string

var listCmd = &cobra.Command{
	Use:   "list [--path <dir>]...",
	Short: "List the workflows that can be run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newResolver(listPaths...)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		defs := r.List()
		if len(defs) == 0 {
			fmt.Fprintln(w, ui.warn("No workflows found."))
			fmt.Fprintln(w, "Searched:")
			for _, root := range r.Roots() {
				fmt.Fprintf(w, "  %s\n", root)
			}
			fmt.Fprintln(w, "Run 'flowrun init' to create an example in ./workflows.")
			return nil
		}
		fmt.Fprintln(w, ui.title(fmt.Sprintf("Workflows (%d)", len(defs))))
		for _, rd := range defs {
			fmt.Fprintf(w, "  %s", ui.ok(rd.Definition.Name))
			if d := strings.TrimSpace(rd.Definition.Description); d != "" {
				fmt.Fprintf(w, "  %s", d)
			}
			fmt.Fprintf(w, "\n    %s\n", ui.dim(rd.Path))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringArrayVar(&listPaths, "path", nil, "Search this directory instead of the configured roots (repeatable)")
}
