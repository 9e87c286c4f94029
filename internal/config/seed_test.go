package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/two-pack/redmine-importer/internal/storage/memory"
	"github.com/two-pack/redmine-importer/internal/types"
)

const seedYAML = `
users:
  - {id: 10, login: admin, firstname: Redmine, lastname: Admin}
  - {id: 11, login: jsmith, firstname: John, lastname: Smith}
  - {id: 13, anonymous: true}
projects:
  - id: 1
    name: Alpha
    identifier: alpha
    members: [admin, jsmith]
statuses:
  - {id: 20, name: New}
  - {id: 22, name: Closed, is_closed: true}
trackers:
  - {id: 30, name: Bug}
priorities:
  - {id: 40, name: Normal, is_default: true}
  - {id: 41, name: High}
activities:
  - {id: 42, name: Development, is_default: true}
custom_fields:
  - id: 50
    name: Tags
    format: list
    multiple: true
    possible_values: [tag1, tag2]
`

func TestSeedFileApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	f, err := LoadSeedFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	s := memory.New()
	counts, err := f.Apply(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, SeedCounts{Projects: 1, Users: 3, Members: 2, Statuses: 2, Trackers: 1, Enumerations: 3, CustomFields: 1}, counts)

	p, err := s.FindProjectByName(ctx, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)

	ok, err := s.CanWatch(ctx, 1, 11)
	require.NoError(t, err)
	assert.True(t, ok)

	anon, err := s.AnonymousUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(13), anon.ID)

	statuses, err := s.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[1].IsClosed)

	prios, err := s.ListEnumerations(ctx, types.EnumPriority)
	require.NoError(t, err)
	require.Len(t, prios, 2)
	assert.True(t, prios[0].IsDefault)
	assert.Equal(t, types.EnumPriority, prios[1].Kind)

	cfs, err := s.ListCustomFields(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cfs, 1)
	assert.Equal(t, types.FormatList, cfs[0].Format)
	assert.Equal(t, []string{"tag1", "tag2"}, cfs[0].PossibleValues)
}

func TestSeedFileErrors(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"unknown member", "projects:\n  - {name: Alpha, members: [ghost]}\n", `member "ghost"`},
		{"bad format", "custom_fields:\n  - {name: Odd, format: colour}\n", `unknown format "colour"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seed.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o600))
			f, err := LoadSeedFile(path)
			require.NoError(t, err)
			_, err = f.Apply(context.Background(), memory.New())
			assert.ErrorContains(t, err, tt.want)
		})
	}

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: {"), 0o600))
	_, err := LoadSeedFile(path)
	assert.ErrorContains(t, err, "parse seed file")
}
