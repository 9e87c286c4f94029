package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// SeedFile is the reference data a fresh store needs before anything can be
// imported. Members are listed by login under each project.
type SeedFile struct {
	Projects []struct {
		types.Project `yaml:",inline"`
		Members       []string `yaml:"members"`
	} `yaml:"projects"`
	Users        []types.User        `yaml:"users"`
	Statuses     []types.IssueStatus `yaml:"statuses"`
	Trackers     []types.Tracker     `yaml:"trackers"`
	Priorities   []types.Enumeration `yaml:"priorities"`
	Activities   []types.Enumeration `yaml:"activities"`
	CustomFields []types.CustomField `yaml:"custom_fields"`
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// SeedCounts reports what Apply created.
type SeedCounts struct {
	Projects     int `json:"projects"`
	Users        int `json:"users"`
	Members      int `json:"members"`
	Statuses     int `json:"statuses"`
	Trackers     int `json:"trackers"`
	Enumerations int `json:"enumerations"`
	CustomFields int `json:"custom_fields"`
}

// Apply writes the seed data. Users are created first so project members can
// be resolved by login; explicit ids are kept.
func (f *SeedFile) Apply(ctx context.Context, s storage.Seeder) (SeedCounts, error) {
	var c SeedCounts
	byLogin := make(map[string]int64, len(f.Users))
	for i := range f.Users {
		u := f.Users[i]
		if err := s.CreateUser(ctx, &u); err != nil {
			return c, fmt.Errorf("user %q: %w", u.Login, err)
		}
		if u.Login != "" {
			byLogin[u.Login] = u.ID
		}
		c.Users++
	}
	for i := range f.Projects {
		p := f.Projects[i].Project
		if err := s.CreateProject(ctx, &p); err != nil {
			return c, fmt.Errorf("project %q: %w", p.Name, err)
		}
		c.Projects++
		for _, login := range f.Projects[i].Members {
			uid, ok := byLogin[login]
			if !ok {
				return c, fmt.Errorf("project %q: member %q is not a seeded user", p.Name, login)
			}
			if err := s.AddMember(ctx, p.ID, uid); err != nil {
				return c, fmt.Errorf("project %q: member %q: %w", p.Name, login, err)
			}
			c.Members++
		}
	}
	for i := range f.Statuses {
		st := f.Statuses[i]
		if st.Position == 0 {
			st.Position = i + 1
		}
		if err := s.CreateStatus(ctx, &st); err != nil {
			return c, fmt.Errorf("status %q: %w", st.Name, err)
		}
		c.Statuses++
	}
	for i := range f.Trackers {
		tr := f.Trackers[i]
		if err := s.CreateTracker(ctx, &tr); err != nil {
			return c, fmt.Errorf("tracker %q: %w", tr.Name, err)
		}
		c.Trackers++
	}
	for _, group := range []struct {
		kind    types.EnumerationKind
		entries []types.Enumeration
	}{
		{types.EnumPriority, f.Priorities},
		{types.EnumActivity, f.Activities},
	} {
		for i := range group.entries {
			e := group.entries[i]
			e.Kind = group.kind
			if e.Position == 0 {
				e.Position = i + 1
			}
			if err := s.CreateEnumeration(ctx, &e); err != nil {
				return c, fmt.Errorf("%s %q: %w", group.kind, e.Name, err)
			}
			c.Enumerations++
		}
	}
	for i := range f.CustomFields {
		cf := f.CustomFields[i]
		if !cf.Format.IsValid() {
			return c, fmt.Errorf("custom field %q: unknown format %q", cf.Name, cf.Format)
		}
		if err := s.CreateCustomField(ctx, &cf); err != nil {
			return c, fmt.Errorf("custom field %q: %w", cf.Name, err)
		}
		c.CustomFields++
	}
	return c, nil
}
