package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/two-pack/redmine-importer/internal/session"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/storage/memory"
	"github.com/two-pack/redmine-importer/internal/types"
)

// Fixture ids.
const (
	projAlpha = 1
	projBeta  = 2

	userAdmin = 10
	userJohn  = 11
	userDana  = 12
	userAnon  = 13
	userLoner = 14

	statusNew        = 20
	statusInProgress = 21
	statusClosed     = 22

	trackerBug     = 30
	trackerFeature = 31

	prioNormal = 40
	prioHigh   = 41
	actDev     = 42
	actDesign  = 43

	cfTags     = 50
	cfLegacyID = 51
	cfAffected = 52
	cfReviewer = 53
)

var fixedNow = time.Date(2024, 6, 3, 14, 15, 16, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	sessions *session.MemoryStore
	imp      *Importer
	admin    *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	must := func(err error) {
		t.Helper()
		require.NoError(t, err)
	}
	must(s.CreateProject(ctx, &types.Project{ID: projAlpha, Name: "Alpha", Identifier: "alpha"}))
	must(s.CreateProject(ctx, &types.Project{ID: projBeta, Name: "Beta", Identifier: "beta"}))

	admin := &types.User{ID: userAdmin, Login: "admin", FirstName: "Redmine", LastName: "Admin"}
	must(s.CreateUser(ctx, admin))
	must(s.CreateUser(ctx, &types.User{ID: userJohn, Login: "jsmith", FirstName: "John", LastName: "Smith"}))
	must(s.CreateUser(ctx, &types.User{ID: userDana, Login: "dlee", FirstName: "Dana", LastName: "Lee"}))
	must(s.CreateUser(ctx, &types.User{ID: userAnon, Login: "", Anonymous: true}))
	must(s.CreateUser(ctx, &types.User{ID: userLoner, Login: "loner", FirstName: "Lone", LastName: "Wolf"}))
	for _, uid := range []int64{userAdmin, userJohn, userDana} {
		must(s.AddMember(ctx, projAlpha, uid))
	}

	must(s.CreateStatus(ctx, &types.IssueStatus{ID: statusNew, Name: "New", Position: 1}))
	must(s.CreateStatus(ctx, &types.IssueStatus{ID: statusInProgress, Name: "In Progress", Position: 2}))
	must(s.CreateStatus(ctx, &types.IssueStatus{ID: statusClosed, Name: "Closed", IsClosed: true, Position: 3}))
	must(s.CreateTracker(ctx, &types.Tracker{ID: trackerBug, Name: "Bug"}))
	must(s.CreateTracker(ctx, &types.Tracker{ID: trackerFeature, Name: "Feature"}))
	must(s.CreateEnumeration(ctx, &types.Enumeration{ID: prioNormal, Kind: types.EnumPriority, Name: "Normal", IsDefault: true, Position: 1}))
	must(s.CreateEnumeration(ctx, &types.Enumeration{ID: prioHigh, Kind: types.EnumPriority, Name: "High", Position: 2}))
	must(s.CreateEnumeration(ctx, &types.Enumeration{ID: actDev, Kind: types.EnumActivity, Name: "Development", IsDefault: true}))
	must(s.CreateEnumeration(ctx, &types.Enumeration{ID: actDesign, Kind: types.EnumActivity, Name: "Design"}))

	must(s.CreateCustomField(ctx, &types.CustomField{ID: cfTags, Name: "Tags", Format: types.FormatList, Multiple: true, PossibleValues: []string{"tag1", "tag2", "tag3"}}))
	must(s.CreateCustomField(ctx, &types.CustomField{ID: cfLegacyID, Name: "Legacy ID", Format: types.FormatString}))
	must(s.CreateCustomField(ctx, &types.CustomField{ID: cfAffected, Name: "Affected versions", Format: types.FormatVersion, Multiple: true}))
	must(s.CreateCustomField(ctx, &types.CustomField{ID: cfReviewer, Name: "Reviewer", Format: types.FormatUser}))

	sessions := session.NewMemoryStore()
	imp := New(s, sessions, WithClock(func() time.Time { return fixedNow }), WithRetryDelay(0))
	return &fixture{store: s, sessions: sessions, imp: imp, admin: admin}
}

// existing stores an issue in Alpha outside any import.
func (f *fixture) existing(t *testing.T, issue *types.Issue) *types.Issue {
	t.Helper()
	if issue.ProjectID == 0 {
		issue.ProjectID = projAlpha
	}
	if issue.TrackerID == 0 {
		issue.TrackerID = trackerBug
	}
	if issue.StatusID == 0 {
		issue.StatusID = statusNew
	}
	if issue.PriorityID == 0 {
		issue.PriorityID = prioNormal
	}
	if issue.AuthorID == 0 {
		issue.AuthorID = userAdmin
	}
	require.NoError(t, f.store.CreateIssue(context.Background(), issue, storage.WriteOptions{SuppressNotifications: true}))
	return issue
}

// run stages csv and imports it with opts.
func (f *fixture) run(t *testing.T, csv string, opts Options) (*Result, error) {
	t.Helper()
	ctx := context.Background()
	preview, err := f.imp.Stage(ctx, StageRequest{Actor: f.admin, ProjectID: projAlpha, Filename: "issues.csv", Data: []byte(csv)})
	require.NoError(t, err)
	if opts.ProjectID == 0 {
		opts.ProjectID = projAlpha
	}
	if opts.DefaultTrackerID == 0 {
		opts.DefaultTrackerID = trackerBug
	}
	return f.imp.Run(ctx, RunRequest{Actor: f.admin, Token: preview.Token, Options: opts})
}

func (f *fixture) issue(t *testing.T, id int64) *types.Issue {
	t.Helper()
	issue, err := f.store.GetIssue(context.Background(), id)
	require.NoError(t, err)
	return issue
}

// findBySubject returns the single issue with subject.
func (f *fixture) findBySubject(t *testing.T, subject string) *types.Issue {
	t.Helper()
	issues, err := f.store.FindIssues(context.Background(), storage.IssueFilter{Column: "subject", Value: subject})
	require.NoError(t, err)
	require.Len(t, issues, 1, "issues with subject %q", subject)
	return issues[0]
}

// mappings maps each column to the field of the same name.
func mappings(pairs ...string) []Mapping {
	var out []Mapping
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Mapping{Column: pairs[i], Field: pairs[i+1]})
	}
	return out
}
