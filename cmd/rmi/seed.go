package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load reference data (projects, users, statuses, ...) into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := config.LoadSeedFile(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		counts, err := f.Apply(ctx, a.db)
		if err != nil {
			return err
		}
		log.WithField("file", args[0]).Debug("seeded")
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), counts)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d projects, %d users, %d statuses, %d trackers, %d enumerations, %d custom fields\n",
			counts.Projects, counts.Users, counts.Statuses, counts.Trackers, counts.Enumerations, counts.CustomFields)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
