package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateProject(ctx, &types.Project{ID: 1, Name: "Alpha"}))
	require.NoError(t, s.CreateUser(ctx, &types.User{ID: 2, Login: "jsmith", FirstName: "John", LastName: "Smith"}))
	require.NoError(t, s.CreateStatus(ctx, &types.IssueStatus{ID: 10, Name: "New"}))
	require.NoError(t, s.CreateStatus(ctx, &types.IssueStatus{ID: 11, Name: "Closed", IsClosed: true, Position: 1}))
	require.NoError(t, s.CreateTracker(ctx, &types.Tracker{ID: 20, Name: "Bug"}))
	require.NoError(t, s.CreateEnumeration(ctx, &types.Enumeration{ID: 30, Kind: types.EnumPriority, Name: "Normal", IsDefault: true}))
	return s
}

func newIssue(subject string) *types.Issue {
	return &types.Issue{ProjectID: 1, TrackerID: 20, StatusID: 10, PriorityID: 30, AuthorID: 2, Subject: subject}
}

func TestCreateIssueSuppliedID(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.CreateIssue(ctx, &types.Issue{ID: 100, ProjectID: 1, TrackerID: 20, StatusID: 10, PriorityID: 30, AuthorID: 2, Subject: "a"}, storage.WriteOptions{}))
	err := s.CreateIssue(ctx, &types.Issue{ID: 100, ProjectID: 1, TrackerID: 20, StatusID: 10, PriorityID: 30, AuthorID: 2, Subject: "b"}, storage.WriteOptions{})
	assert.True(t, errors.Is(err, storage.ErrDuplicateID), "got %v", err)

	next := newIssue("c")
	require.NoError(t, s.CreateIssue(ctx, next, storage.WriteOptions{}))
	assert.Greater(t, next.ID, int64(100))
}

func TestNotificationsSuppressed(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	require.NoError(t, s.CreateIssue(ctx, newIssue("loud"), storage.WriteOptions{}))
	require.NoError(t, s.CreateIssue(ctx, newIssue("quiet"), storage.WriteOptions{SuppressNotifications: true}))
	assert.Equal(t, 1, s.Notifications())
}

func TestFindIssuesOpenOnlyAndLimit(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	for _, st := range []int64{10, 10, 11} {
		i := newIssue("dup")
		i.StatusID = st
		require.NoError(t, s.CreateIssue(ctx, i, storage.WriteOptions{}))
	}

	got, err := s.FindIssues(ctx, storage.IssueFilter{Column: "subject", Value: "dup", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.FindIssues(ctx, storage.IssueFilter{Column: "subject", Value: "dup", OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.FindIssues(ctx, storage.IssueFilter{Column: "author_id", Value: "2"})
	assert.Error(t, err)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	s.FailNext("UpdateIssue", storage.ErrWriteConflict)
	i := newIssue("x")
	require.NoError(t, s.CreateIssue(ctx, i, storage.WriteOptions{}))
	err := s.UpdateIssue(ctx, i, nil, storage.WriteOptions{})
	assert.ErrorIs(t, err, storage.ErrWriteConflict)
	assert.NoError(t, s.UpdateIssue(ctx, i, nil, storage.WriteOptions{}))
	assert.Equal(t, 2, s.Calls("UpdateIssue"))
}

func TestRelationsNormalizedAndUnique(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	a, b := newIssue("a"), newIssue("b")
	require.NoError(t, s.CreateIssue(ctx, a, storage.WriteOptions{}))
	require.NoError(t, s.CreateIssue(ctx, b, storage.WriteOptions{}))

	require.NoError(t, s.CreateRelation(ctx, &types.Relation{IssueFromID: a.ID, IssueToID: b.ID, Type: types.RelFollows}))
	rels, err := s.ListRelations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, types.RelPrecedes, rels[0].Type)
	assert.Equal(t, types.RelFollows, rels[0].TypeFor(a.ID))

	var verr *types.ValidationError
	assert.ErrorAs(t, s.CreateRelation(ctx, &types.Relation{IssueFromID: b.ID, IssueToID: a.ID, Type: types.RelRelates}), &verr)
}

func TestUpdateIssueJournal(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	i := newIssue("x")
	require.NoError(t, s.CreateIssue(ctx, i, storage.WriteOptions{}))

	require.NoError(t, s.UpdateIssue(ctx, i, &types.Journal{UserID: 2, Notes: "imported"}, storage.WriteOptions{}))
	require.NoError(t, s.UpdateIssue(ctx, i, &types.Journal{UserID: 2}, storage.WriteOptions{}))
	js := s.Journals(i.ID)
	require.Len(t, js, 1)
	assert.Equal(t, "imported", js[0].Notes)
}
