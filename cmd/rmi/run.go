package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/two-pack/redmine-importer/internal/config"
	"github.com/two-pack/redmine-importer/internal/importer"
	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/timeparsing"
	"github.com/two-pack/redmine-importer/internal/ui"
)

// exitRowsFailed is the exit status when the run finished but some rows failed.
const exitRowsFailed = 2

// runFlags maps boolean flags onto profile switches.
var runFlags = []struct {
	name, usage string
	set         func(p *config.Profile, v bool)
}{
	{"update", "Update the issue matching the unique column instead of creating one", func(p *config.Profile, v bool) { p.UpdateIssue = v }},
	{"update-other-project", "Allow updating issues of other projects", func(p *config.Profile, v bool) { p.UpdateOtherProject = v }},
	{"allow-closed", "Allow updating closed issues", func(p *config.Profile, v bool) { p.AllowClosedUpdate = v }},
	{"add-categories", "Create categories that do not exist", func(p *config.Profile, v bool) { p.AddCategories = v }},
	{"add-versions", "Create versions that do not exist", func(p *config.Profile, v bool) { p.AddVersions = v }},
	{"use-issue-id", "Create issues with the id from the id column", func(p *config.Profile, v bool) { p.UseIssueID = v }},
	{"ignore-non-exist", "Skip rows whose target issue does not exist", func(p *config.Profile, v bool) { p.IgnoreNonExist = v }},
	{"use-anonymous", "Use the anonymous user for unknown names", func(p *config.Profile, v bool) { p.UseAnonymous = v }},
	{"no-notify", "Do not send change notifications", func(p *config.Profile, v bool) { p.DisableNotifications = v }},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Import the staged table",
	Long: `Run imports the actor's staged table. Columns are mapped with --map
COLUMN=FIELD (see 'rmi fields') or an import profile; flags override the
profile. Rows that fail are reported and the run carries on. The exit status
is 2 when any row failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, err := buildProfile(cmd)
		if err != nil {
			return err
		}
		opts, err := profile.Options(time.Now())
		if err != nil {
			return err
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

		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			sess, err := a.sessions.Get(ctx, actor.ID)
			if errors.Is(err, session.ErrNotFound) {
				return importer.ErrNoImportInProgress
			}
			if err != nil {
				return err
			}
			token = sess.Token()
		}

		res, runErr := a.importer.Run(ctx, importer.RunRequest{Actor: actor, Token: token, Options: opts})
		if res == nil {
			return runErr
		}
		if jsonOutput {
			if err := outputJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			ui.RenderResult(cmd.OutOrStdout(), theme(), res)
		}
		if runErr != nil {
			return runErr
		}
		if res.Failed > 0 {
			return exitError{code: exitRowsFailed}
		}
		return nil
	},
}

// buildProfile loads --profile, if any, and layers the command line on top.
func buildProfile(cmd *cobra.Command) (*config.Profile, error) {
	p := &config.Profile{}
	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		var err error
		if p, err = config.LoadProfile(path); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("project") {
		p.Project, _ = f.GetInt64("project")
	}
	if f.Changed("tracker") {
		p.Tracker, _ = f.GetInt64("tracker")
	}
	if f.Changed("unique") {
		p.UniqueField, _ = f.GetString("unique")
	}
	if f.Changed("journal") {
		p.Journal, _ = f.GetString("journal")
	}
	if f.Changed("spent-on") {
		p.SpentOn, _ = f.GetString("spent-on")
	}
	for _, rf := range runFlags {
		if f.Changed(rf.name) {
			v, _ := f.GetBool(rf.name)
			rf.set(p, v)
		}
	}

	pairs, _ := f.GetStringArray("map")
	for _, pair := range pairs {
		m, err := parseMapping(pair)
		if err != nil {
			return nil, err
		}
		p.Mappings = setMapping(p.Mappings, m)
	}
	if p.Project == 0 {
		return nil, errors.New("no project: pass --project or set project in the profile")
	}
	if _, err := timeparsing.ParseDate(p.SpentOn, time.Now()); err != nil {
		return nil, fmt.Errorf("--spent-on: %w", err)
	}
	return p, nil
}

// parseMapping splits COLUMN=FIELD. The last '=' separates them so column
// names may contain one.
func parseMapping(s string) (importer.Mapping, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return importer.Mapping{}, fmt.Errorf("--map %q: want COLUMN=FIELD", s)
	}
	return importer.Mapping{Column: s[:i], Field: strings.TrimSpace(s[i+1:])}, nil
}

// setMapping replaces the mapping for m.Column or appends it.
func setMapping(ms []importer.Mapping, m importer.Mapping) []importer.Mapping {
	for i := range ms {
		if ms[i].Column == m.Column {
			ms[i] = m
			return ms
		}
	}
	return append(ms, m)
}

// addRunFlags registers run's flags on cmd.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("token", "", "Token printed by 'rmi stage' (default: the staged table)")
	cmd.Flags().String("profile", "", "Import profile (.yaml or .toml)")
	cmd.Flags().StringArray("map", nil, "Map a column to a field, COLUMN=FIELD (repeatable)")
	cmd.Flags().Int64("project", 0, "Default project id")
	cmd.Flags().Int64("tracker", 0, "Default tracker id")
	cmd.Flags().String("unique", "", "Column identifying existing issues and relation targets")
	cmd.Flags().String("journal", "", "Column whose value becomes the update note")
	cmd.Flags().String("spent-on", "", "Date for logged time: 2006-01-02, -1d, yesterday (default today)")
	for _, rf := range runFlags {
		cmd.Flags().Bool(rf.name, false, rf.usage)
	}
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
