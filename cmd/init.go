package cmd

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"flowrun/internal/config"
	"flowrun/internal/util"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

//go:embed templates/example.yaml
var templatesFS embed.FS

var initGlobal bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create workflows/example.yaml to start from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := config.WorkflowsDir
		if initGlobal {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			dir = filepath.Join(home, ".flowrun", config.WorkflowsDir)
		}
		path, created, err := scaffold(afero.NewOsFs(), dir)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if !created {
			fmt.Fprintf(w, "%s %s already exists, leaving it untouched\n", ui.warn("[SKIP]"), path)
			return nil
		}
		util.Logger().Debug("scaffolded example", "path", path)
		fmt.Fprintf(w, "%s created %s\n", ui.ok("[OK]"), path)
		fmt.Fprintln(w, "Try: flowrun describe example")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "Write into ~/.flowrun/workflows instead of ./workflows")
}

// scaffold writes the embedded example into dir. An existing file is never overwritten.
func scaffold(fsys afero.Fs, dir string) (string, bool, error) {
	path := filepath.Join(dir, "example.yaml")
	data, err := templatesFS.ReadFile("templates/example.yaml")
	if err != nil {
		return path, false, err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return path, false, err
	}
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return path, false, nil
		}
		return path, false, err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return path, false, err
	}
	return path, true, nil
}
