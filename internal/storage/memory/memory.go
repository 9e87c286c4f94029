// Package memory implements an in-memory storage.Store. It backs unit tests
// and dry runs, counts store calls and emitted notifications, and can inject
// write failures.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// Store is a mutex-guarded map-backed store.
type Store struct {
	mu sync.Mutex

	projects     map[int64]*types.Project
	users        map[int64]*types.User
	members      map[int64]map[int64]bool
	statuses     []*types.IssueStatus
	trackers     []*types.Tracker
	enumerations []*types.Enumeration
	versions     []*types.Version
	categories   []*types.Category
	customFields []*types.CustomField
	issues       map[int64]*types.Issue
	relations    []*types.Relation
	journals     []*types.Journal
	timeEntries  []*types.TimeEntry

	nextID        int64
	calls         map[string]int
	notifications int
	failures      []failure
	now           func() time.Time
}

type failure struct {
	op  string
	err error
}

var _ storage.Store = (*Store)(nil)
var _ storage.Seeder = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		projects: make(map[int64]*types.Project),
		users:    make(map[int64]*types.User),
		members:  make(map[int64]map[int64]bool),
		issues:   make(map[int64]*types.Issue),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Notifications returns how many change notifications writes have emitted.
func (s *Store) Notifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications
}

// FailNext makes the next call to op return err. Failures queue in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{op: op, err: err})
}

// Journals returns the notes recorded for issueID.
func (s *Store) Journals(issueID int64) []*types.Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Journal
	for _, j := range s.journals {
		if j.IssueID == issueID {
			c := *j
			out = append(out, &c)
		}
	}
	return out
}

// TimeEntries returns the time logged against issueID.
func (s *Store) TimeEntries(issueID int64) []*types.TimeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.TimeEntry
	for _, te := range s.timeEntries {
		if te.IssueID == issueID {
			c := *te
			out = append(out, &c)
		}
	}
	return out
}

// IssueCount returns the number of stored issues.
func (s *Store) IssueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issues)
}

// enter records a call and pops an injected failure. Callers hold s.mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	for i, f := range s.failures {
		if f.op == op {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f.err
		}
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetProject"); err != nil {
		return nil, err
	}
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, storage.ErrNotFound)
	}
	c := *p
	return &c, nil
}

// FindProjectByName matches a project by exact name.
func (s *Store) FindProjectByName(ctx context.Context, name string) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindProjectByName"); err != nil {
		return nil, err
	}
	for _, p := range s.projects {
		if p.Name == name {
			c := *p
			return &c, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, storage.ErrNotFound)
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	c := *u
	return &c, nil
}

// FindUserByLogin matches a login case-insensitively.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindUserByLogin"); err != nil {
		return nil, err
	}
	for _, u := range s.sortedUsers() {
		if !u.Anonymous && strings.EqualFold(u.Login, login) {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", login, storage.ErrNotFound)
}

// ListUsers returns every non-anonymous user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListUsers"); err != nil {
		return nil, err
	}
	var out []*types.User
	for _, u := range s.sortedUsers() {
		if !u.Anonymous {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// AnonymousUser returns the built-in anonymous account.
func (s *Store) AnonymousUser(ctx context.Context) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AnonymousUser"); err != nil {
		return nil, err
	}
	for _, u := range s.sortedUsers() {
		if u.Anonymous {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("anonymous user: %w", storage.ErrNotFound)
}

func (s *Store) sortedUsers() []*types.User {
	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CanWatch reports whether userID is an active member of projectID.
func (s *Store) CanWatch(ctx context.Context, projectID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CanWatch"); err != nil {
		return false, err
	}
	u, ok := s.users[userID]
	if !ok || u.Locked || u.Anonymous {
		return false, nil
	}
	return s.members[projectID][userID], nil
}

// ListStatuses returns statuses ordered by position.
func (s *Store) ListStatuses(ctx context.Context) ([]*types.IssueStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListStatuses"); err != nil {
		return nil, err
	}
	out := make([]*types.IssueStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		c := *st
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// ListTrackers returns every tracker.
func (s *Store) ListTrackers(ctx context.Context) ([]*types.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListTrackers"); err != nil {
		return nil, err
	}
	out := make([]*types.Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

// ListEnumerations returns the entries of kind ordered by position.
func (s *Store) ListEnumerations(ctx context.Context, kind types.EnumerationKind) ([]*types.Enumeration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListEnumerations"); err != nil {
		return nil, err
	}
	var out []*types.Enumeration
	for _, e := range s.enumerations {
		if e.Kind == kind {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// FindSharedVersion finds a version by name among those usable by projectID.
func (s *Store) FindSharedVersion(ctx context.Context, projectID int64, name string) (*types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindSharedVersion"); err != nil {
		return nil, err
	}
	for _, v := range s.versions {
		if v.Name == name && v.SharedWith(projectID) {
			c := *v
			return &c, nil
		}
	}
	return nil, fmt.Errorf("version %q: %w", name, storage.ErrNotFound)
}

// CreateVersion stores v and assigns its id.
func (s *Store) CreateVersion(ctx context.Context, v *types.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateVersion"); err != nil {
		return err
	}
	if strings.TrimSpace(v.Name) == "" {
		verr := &types.ValidationError{}
		verr.Add("name", "cannot be blank")
		return verr
	}
	v.ID = s.id()
	c := *v
	s.versions = append(s.versions, &c)
	return nil
}

// FindCategory finds a category by name within projectID.
func (s *Store) FindCategory(ctx context.Context, projectID int64, name string) (*types.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindCategory"); err != nil {
		return nil, err
	}
	for _, cat := range s.categories {
		if cat.ProjectID == projectID && cat.Name == name {
			c := *cat
			return &c, nil
		}
	}
	return nil, fmt.Errorf("category %q: %w", name, storage.ErrNotFound)
}

// CreateCategory stores c and assigns its id.
func (s *Store) CreateCategory(ctx context.Context, c *types.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateCategory"); err != nil {
		return err
	}
	c.ID = s.id()
	cp := *c
	s.categories = append(s.categories, &cp)
	return nil
}

// ListCustomFields returns the issue custom fields available to projectID.
func (s *Store) ListCustomFields(ctx context.Context, projectID int64) ([]*types.CustomField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListCustomFields"); err != nil {
		return nil, err
	}
	var out []*types.CustomField
	for _, cf := range s.customFields {
		if cf.AvailableTo(projectID) {
			c := *cf
			c.PossibleValues = append([]string(nil), cf.PossibleValues...)
			out = append(out, &c)
		}
	}
	return out, nil
}

// GetIssue returns a copy of the issue with id.
func (s *Store) GetIssue(ctx context.Context, id int64) (*types.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetIssue"); err != nil {
		return nil, err
	}
	issue, ok := s.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %d: %w", id, storage.ErrNotFound)
	}
	return issue.Clone(), nil
}

// FindIssues returns issues matching filter ordered by id.
func (s *Store) FindIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindIssues"); err != nil {
		return nil, err
	}
	if filter.Column != "" && !storage.IsFilterColumn(filter.Column) {
		return nil, fmt.Errorf("find issues: unsupported column %q", filter.Column)
	}
	ids := make([]int64, 0, len(s.issues))
	for id := range s.issues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*types.Issue
	for _, id := range ids {
		issue := s.issues[id]
		if filter.OpenOnly && s.isClosed(issue.StatusID) {
			continue
		}
		if !matches(issue, filter) {
			continue
		}
		out = append(out, issue.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) isClosed(statusID int64) bool {
	for _, st := range s.statuses {
		if st.ID == statusID {
			return st.IsClosed
		}
	}
	return false
}

func matches(issue *types.Issue, f storage.IssueFilter) bool {
	if f.CustomFieldID != 0 {
		for _, v := range issue.CustomValues[f.CustomFieldID] {
			if v == f.Value {
				return true
			}
		}
		return false
	}
	switch f.Column {
	case "subject":
		return issue.Subject == f.Value
	case "description":
		return issue.Description == f.Value
	case "start_date":
		return issue.StartDate != nil && issue.StartDate.Format(types.DateLayout) == f.Value
	case "due_date":
		return issue.DueDate != nil && issue.DueDate.Format(types.DateLayout) == f.Value
	case "done_ratio":
		return strconv.Itoa(issue.DoneRatio) == f.Value
	case "estimated_hours":
		want, err := strconv.ParseFloat(f.Value, 64)
		return err == nil && issue.EstimatedHours != nil && *issue.EstimatedHours == want
	}
	return false
}

// CreateIssue validates and stores issue. A non-zero ID is kept as supplied.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, opts storage.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateIssue"); err != nil {
		return err
	}
	if err := issue.Validate(); err != nil {
		return err
	}
	if issue.ID != 0 {
		if _, exists := s.issues[issue.ID]; exists {
			return fmt.Errorf("issue %d: %w", issue.ID, storage.ErrDuplicateID)
		}
		if issue.ID > s.nextID {
			s.nextID = issue.ID
		}
	} else {
		issue.ID = s.id()
	}
	now := s.now()
	issue.CreatedAt, issue.UpdatedAt = now, now
	s.issues[issue.ID] = issue.Clone()
	if !opts.SuppressNotifications {
		s.notifications++
	}
	return nil
}

// UpdateIssue replaces the stored issue and records journal when it has notes.
func (s *Store) UpdateIssue(ctx context.Context, issue *types.Issue, journal *types.Journal, opts storage.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("UpdateIssue"); err != nil {
		return err
	}
	prev, ok := s.issues[issue.ID]
	if !ok {
		return fmt.Errorf("issue %d: %w", issue.ID, storage.ErrNotFound)
	}
	if err := issue.Validate(); err != nil {
		return err
	}
	issue.CreatedAt = prev.CreatedAt
	issue.UpdatedAt = s.now()
	s.issues[issue.ID] = issue.Clone()
	if journal != nil && journal.Notes != "" {
		journal.ID = s.id()
		journal.IssueID = issue.ID
		journal.CreatedAt = issue.UpdatedAt
		j := *journal
		s.journals = append(s.journals, &j)
	}
	if !opts.SuppressNotifications {
		s.notifications++
	}
	return nil
}

// ListRelations returns links touching issueID.
func (s *Store) ListRelations(ctx context.Context, issueID int64) ([]*types.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListRelations"); err != nil {
		return nil, err
	}
	var out []*types.Relation
	for _, r := range s.relations {
		if r.IssueFromID == issueID || r.IssueToID == issueID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// CreateRelation normalizes and stores rel. Duplicate links are rejected.
func (s *Store) CreateRelation(ctx context.Context, rel *types.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateRelation"); err != nil {
		return err
	}
	if err := rel.Validate(); err != nil {
		return err
	}
	rel.Normalize()
	for _, id := range []int64{rel.IssueFromID, rel.IssueToID} {
		if _, ok := s.issues[id]; !ok {
			return fmt.Errorf("issue %d: %w", id, storage.ErrNotFound)
		}
	}
	for _, r := range s.relations {
		if (r.IssueFromID == rel.IssueFromID && r.IssueToID == rel.IssueToID) ||
			(r.IssueFromID == rel.IssueToID && r.IssueToID == rel.IssueFromID) {
			verr := &types.ValidationError{}
			verr.Add("issue_to_id", "has already been taken")
			return verr
		}
	}
	rel.ID = s.id()
	c := *rel
	s.relations = append(s.relations, &c)
	return nil
}

// CreateTimeEntry validates and stores entry.
func (s *Store) CreateTimeEntry(ctx context.Context, entry *types.TimeEntry, opts storage.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateTimeEntry"); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	entry.ID = s.id()
	c := *entry
	s.timeEntries = append(s.timeEntries, &c)
	return nil
}
