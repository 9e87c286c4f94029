package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/two-pack/redmine-importer/internal/importer"
	"github.com/two-pack/redmine-importer/internal/timeparsing"
)

// Profile is a saved import configuration: how to read the file and how its
// columns map onto issue fields. Profiles are YAML or TOML, chosen by
// extension.
type Profile struct {
	Encoding  string `yaml:"encoding" toml:"encoding"`
	Delimiter string `yaml:"delimiter" toml:"delimiter"`
	Quote     string `yaml:"quote" toml:"quote"`

	Project     int64              `yaml:"project" toml:"project"`
	Tracker     int64              `yaml:"tracker" toml:"tracker"`
	UniqueField string             `yaml:"unique_field" toml:"unique_field"`
	Journal     string             `yaml:"journal_field" toml:"journal_field"`
	SpentOn     string             `yaml:"spent_on" toml:"spent_on"`
	Mappings    []importer.Mapping `yaml:"mappings" toml:"mappings"`

	UpdateIssue          bool `yaml:"update_issue" toml:"update_issue"`
	UpdateOtherProject   bool `yaml:"update_other_project" toml:"update_other_project"`
	AllowClosedUpdate    bool `yaml:"allow_closed_issues_update" toml:"allow_closed_issues_update"`
	AddCategories        bool `yaml:"add_categories" toml:"add_categories"`
	AddVersions          bool `yaml:"add_versions" toml:"add_versions"`
	UseIssueID           bool `yaml:"use_issue_id" toml:"use_issue_id"`
	IgnoreNonExist       bool `yaml:"ignore_non_exist" toml:"ignore_non_exist"`
	UseAnonymous         bool `yaml:"use_anonymous" toml:"use_anonymous"`
	DisableNotifications bool `yaml:"disable_notifications" toml:"disable_notifications"`
}

// LoadProfile reads a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data, filepath.Ext(path))
}

// ParseProfile decodes a profile. ext selects the format: ".toml" for TOML,
// anything else for YAML.
func ParseProfile(data []byte, ext string) (*Profile, error) {
	var p Profile
	if strings.EqualFold(ext, ".toml") {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
			return nil, fmt.Errorf("parse profile: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("parse profile: %w", err)
		}
	}
	for i, m := range p.Mappings {
		if strings.TrimSpace(m.Column) == "" {
			return nil, fmt.Errorf("parse profile: mapping %d has no column", i+1)
		}
	}
	return &p, nil
}

// Options converts the profile into importer options. A relative spent_on
// expression is evaluated against now.
func (p *Profile) Options(now time.Time) (importer.Options, error) {
	opts := importer.Options{
		ProjectID:               p.Project,
		Mappings:                append([]importer.Mapping(nil), p.Mappings...),
		UniqueField:             p.UniqueField,
		UpdateIssue:             p.UpdateIssue,
		UpdateOtherProject:      p.UpdateOtherProject,
		AllowClosedIssuesUpdate: p.AllowClosedUpdate,
		AddCategories:           p.AddCategories,
		AddVersions:             p.AddVersions,
		UseIssueID:              p.UseIssueID,
		IgnoreNonExist:          p.IgnoreNonExist,
		UseAnonymous:            p.UseAnonymous,
		DisableNotifications:    p.DisableNotifications,
		DefaultTrackerID:        p.Tracker,
		JournalField:            p.Journal,
	}
	if p.SpentOn != "" {
		d, err := timeparsing.ParseDate(p.SpentOn, now)
		if err != nil {
			return opts, fmt.Errorf("spent_on: %w", err)
		}
		opts.SpentOn = d
	}
	return opts, nil
}
