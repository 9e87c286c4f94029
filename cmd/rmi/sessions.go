package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/importer"
	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/timeparsing"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and purge staged imports",
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the actor's staged import",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		actor, err := a.actor(ctx)
		if err != nil {
			return err
		}
		sess, err := a.sessions.Get(ctx, actor.ID)
		if errors.Is(err, session.ErrNotFound) {
			return importer.ErrNoImportInProgress
		}
		if err != nil {
			return err
		}
		info := map[string]any{
			"token":     sess.Token(),
			"filename":  sess.Filename,
			"encoding":  sess.Encoding,
			"delimiter": sess.ColSep,
			"quote":     sess.QuoteChar,
			"bytes":     len(sess.CSVData),
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes, %s, delimiter %q, quote %q)\ntoken: %s\n",
			sess.Filename, len(sess.CSVData), sess.Encoding, sess.ColSep, sess.QuoteChar, sess.Token())
		return nil
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete staged imports older than the retention window",
	Long: `Purge deletes staged imports created before a cutoff. By default the
cutoff is the configured retention (import.retention, 72h) before now;
--before takes a date expression such as 2024-06-01, -1d or yesterday.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		var n int
		if before, _ := cmd.Flags().GetString("before"); before != "" {
			cutoff, err := timeparsing.ParseRelativeTime(before, time.Now())
			if err != nil {
				return fmt.Errorf("--before: %w", err)
			}
			n, err = a.sessions.PurgeBefore(ctx, cutoff)
			if err != nil {
				return err
			}
		} else if n, err = a.importer.PurgeSessions(ctx); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]int{"purged": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d staged imports\n", n)
		return nil
	},
}

func init() {
	sessionsPurgeCmd.Flags().String("before", "", "Purge imports staged before this date")
	sessionsCmd.AddCommand(sessionsShowCmd, sessionsPurgeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
