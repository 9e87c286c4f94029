// Package storage defines the record store the importer reconciles rows
// against.
//
// Concrete stores live in the memory and sqlstore sub-packages. This package
// holds the interface, the value types shared by both, and the sentinel
// errors drivers translate their native failures into.
package storage

import (
	"context"
	"errors"

	"github.com/two-pack/redmine-importer/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when an issue is created with a caller-supplied
// id that is already taken.
var ErrDuplicateID = errors.New("id already exists")

// ErrWriteConflict is returned for transient write failures (deadlocks,
// busy databases, serialization failures). Callers may retry.
var ErrWriteConflict = errors.New("write conflict")

// WriteOptions travel with every write so callers can scope side effects to
// one batch.
type WriteOptions struct {
	// SuppressNotifications disables the change notifications normally
	// emitted for created or updated issues.
	SuppressNotifications bool
}

// IssueFilter selects issues by one attribute. Exactly one of Column or
// CustomFieldID is set.
type IssueFilter struct {
	Column        string // one of FilterColumns
	CustomFieldID int64
	Value         string
	OpenOnly      bool // exclude issues whose status is closed
	Limit         int  // 0 means no limit
}

// FilterColumns lists the issue columns IssueFilter.Column may name.
var FilterColumns = []string{
	"subject", "description", "start_date", "due_date", "done_ratio", "estimated_hours",
}

// IsFilterColumn reports whether col can be used in IssueFilter.Column.
func IsFilterColumn(col string) bool {
	for _, c := range FilterColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Store is satisfied by *memory.Store and *sqlstore.Store.
type Store interface {
	// Projects and users
	GetProject(ctx context.Context, id int64) (*types.Project, error)
	FindProjectByName(ctx context.Context, name string) (*types.Project, error)
	GetUser(ctx context.Context, id int64) (*types.User, error)
	FindUserByLogin(ctx context.Context, login string) (*types.User, error)
	ListUsers(ctx context.Context) ([]*types.User, error)
	AnonymousUser(ctx context.Context) (*types.User, error)
	CanWatch(ctx context.Context, projectID, userID int64) (bool, error)

	// Enumerations
	ListStatuses(ctx context.Context) ([]*types.IssueStatus, error)
	ListTrackers(ctx context.Context) ([]*types.Tracker, error)
	ListEnumerations(ctx context.Context, kind types.EnumerationKind) ([]*types.Enumeration, error)

	// Project-scoped references
	FindSharedVersion(ctx context.Context, projectID int64, name string) (*types.Version, error)
	CreateVersion(ctx context.Context, v *types.Version) error
	FindCategory(ctx context.Context, projectID int64, name string) (*types.Category, error)
	CreateCategory(ctx context.Context, c *types.Category) error
	ListCustomFields(ctx context.Context, projectID int64) ([]*types.CustomField, error)

	// Issues
	GetIssue(ctx context.Context, id int64) (*types.Issue, error)
	FindIssues(ctx context.Context, filter IssueFilter) ([]*types.Issue, error)
	CreateIssue(ctx context.Context, issue *types.Issue, opts WriteOptions) error
	UpdateIssue(ctx context.Context, issue *types.Issue, journal *types.Journal, opts WriteOptions) error

	// Relations and time tracking
	ListRelations(ctx context.Context, issueID int64) ([]*types.Relation, error)
	CreateRelation(ctx context.Context, rel *types.Relation) error
	CreateTimeEntry(ctx context.Context, entry *types.TimeEntry, opts WriteOptions) error

	Close() error
}

// Seeder loads reference data. Stores created by the tool start empty.
type Seeder interface {
	CreateProject(ctx context.Context, p *types.Project) error
	CreateUser(ctx context.Context, u *types.User) error
	AddMember(ctx context.Context, projectID, userID int64) error
	CreateStatus(ctx context.Context, s *types.IssueStatus) error
	CreateTracker(ctx context.Context, t *types.Tracker) error
	CreateEnumeration(ctx context.Context, e *types.Enumeration) error
	CreateCustomField(ctx context.Context, cf *types.CustomField) error
}

// DefaultEnumeration returns the entry flagged as default, or nil.
func DefaultEnumeration(entries []*types.Enumeration) *types.Enumeration {
	for _, e := range entries {
		if e.IsDefault {
			return e
		}
	}
	return nil
}
