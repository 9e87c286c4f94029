package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/config"
	"github.com/two-pack/redmine-importer/internal/importer"
	"github.com/two-pack/redmine-importer/internal/ui"
)

var stageCmd = &cobra.Command{
	Use:   "stage [file|-]",
	Short: "Stage a CSV or .xlsx table for import and preview it",
	Long: `Stage reads a table, decodes it, and keeps it as the actor's import in
progress, replacing any earlier one. The preview shows the header, the first
rows and the fields columns can be mapped to. Pass the printed token to
'rmi run'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := "-"
		if len(args) == 1 {
			name = args[0]
		}

		var data []byte
		var err error
		if name == "-" {
			if ui.IsTerminal(os.Stdin) {
				return errors.New("no input: pass a file or pipe the table on stdin")
			}
			data, err = io.ReadAll(cmd.InOrStdin())
			name, _ = cmd.Flags().GetString("filename")
		} else {
			data, err = os.ReadFile(name) // #nosec G304 -- file is named by the user
			name = filepath.Base(name)
		}
		if err != nil {
			return fmt.Errorf("read table: %w", err)
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		actor, err := a.actor(ctx)
		if err != nil {
			return err
		}

		project, _ := cmd.Flags().GetInt64("project")
		req := importer.StageRequest{
			Actor:     actor,
			ProjectID: project,
			Filename:  name,
			Data:      data,
			Encoding:  flagOrConfig(cmd, "encoding", "import.encoding"),
			Delimiter: flagOrConfig(cmd, "delimiter", "import.delimiter"),
			Quote:     flagOrConfig(cmd, "quote", "import.quote"),
		}
		preview, err := a.importer.Stage(ctx, req)
		if preview != nil {
			if jsonOutput {
				if jerr := outputJSON(cmd.OutOrStdout(), preview); jerr != nil {
					return jerr
				}
			} else {
				ui.RenderPreview(cmd.OutOrStdout(), theme(), preview)
			}
		}
		return err
	},
}

// flagOrConfig returns the flag value when set, else the config key.
func flagOrConfig(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return config.GetString(key)
}

func init() {
	stageCmd.Flags().Int64("project", 0, "Project whose custom fields are offered for mapping")
	stageCmd.Flags().String("encoding", "", "Source encoding, any WHATWG label (default UTF-8)")
	stageCmd.Flags().String("delimiter", "", "Field delimiter (default ,)")
	stageCmd.Flags().String("quote", "", `Quote character (default ")`)
	stageCmd.Flags().String("filename", "stdin.csv", "Name recorded for a table read from stdin")
	rootCmd.AddCommand(stageCmd)
}
