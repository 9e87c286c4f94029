package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/two-pack/redmine-importer/internal/config"
	"github.com/two-pack/redmine-importer/internal/importer"
)

func parseRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	addRunFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestParseMapping(t *testing.T) {
	m, err := parseMapping("Subject=subject")
	require.NoError(t, err)
	assert.Equal(t, importer.Mapping{Column: "Subject", Field: "subject"}, m)

	m, err = parseMapping("a=b=blocks")
	require.NoError(t, err)
	assert.Equal(t, importer.Mapping{Column: "a=b", Field: "blocks"}, m)

	m, err = parseMapping("Notes=")
	require.NoError(t, err)
	assert.Equal(t, "", m.Field, "an empty field leaves the column unmapped")

	for _, bad := range []string{"Subject", "=subject", ""} {
		_, err := parseMapping(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildProfileFlags(t *testing.T) {
	cmd := parseRunFlags(t,
		"--project", "3", "--tracker", "4", "--unique", "#",
		"--map", "#=id", "--map", "Subject=subject", "--map", "#=parent_issue",
		"--update", "--no-notify", "--spent-on", "2024-05-31",
	)
	p, err := buildProfile(cmd)
	require.NoError(t, err)

	opts, err := p.Options(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), opts.ProjectID)
	assert.Equal(t, int64(4), opts.DefaultTrackerID)
	assert.Equal(t, "#", opts.UniqueField)
	assert.True(t, opts.UpdateIssue)
	assert.True(t, opts.DisableNotifications)
	assert.False(t, opts.AddVersions)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), opts.SpentOn)
	assert.Equal(t, []importer.Mapping{
		{Column: "#", Field: "parent_issue"},
		{Column: "Subject", Field: "subject"},
	}, opts.Mappings)
}

func TestBuildProfileOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := "project: 1\nupdate_issue: true\nmappings:\n  - {column: Subject, field: subject}\n"
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o600))

	p, err := buildProfile(parseRunFlags(t, "--profile", path, "--update=false", "--map", "Title=subject"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Project)
	assert.False(t, p.UpdateIssue, "flags beat the profile")
	assert.Len(t, p.Mappings, 2)
}

func TestBuildProfileErrors(t *testing.T) {
	_, err := buildProfile(parseRunFlags(t, "--map", "Subject=subject"))
	assert.ErrorContains(t, err, "no project")

	_, err = buildProfile(parseRunFlags(t, "--project", "1", "--map", "Subject"))
	assert.ErrorContains(t, err, "want COLUMN=FIELD")

	_, err = buildProfile(parseRunFlags(t, "--project", "1", "--spent-on", "zzz"))
	assert.ErrorContains(t, err, "--spent-on")

	_, err = buildProfile(parseRunFlags(t, "--profile", filepath.Join(t.TempDir(), "none.yaml")))
	assert.ErrorContains(t, err, "read profile")
}

func TestTelemetryConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "session:\n  backend: redis\ntelemetry:\n  enabled: true\n  endpoint: collector:4318\n  interval: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	require.NoError(t, config.InitializeFile(path))
	t.Cleanup(func() { _ = config.Initialize() })

	old := driverName
	driverName = "postgres"
	t.Cleanup(func() { driverName = old })

	got := telemetryConfig()
	assert.True(t, got.Enabled)
	assert.Equal(t, "collector:4318", got.Endpoint)
	assert.Equal(t, 5*time.Second, got.Interval)
	assert.Equal(t, "postgres", got.Driver)
	assert.Equal(t, "redis", got.SessionBackend)
}
