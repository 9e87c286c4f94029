package main

import (
	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/ui"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields columns can be mapped to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		project, _ := cmd.Flags().GetInt64("project")
		fields, err := a.importer.Fields(ctx, project)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), fields)
		}
		ui.RenderFields(cmd.OutOrStdout(), theme(), fields)
		return nil
	},
}

func init() {
	fieldsCmd.Flags().Int64("project", 0, "Include custom fields of this project")
	rootCmd.AddCommand(fieldsCmd)
}
