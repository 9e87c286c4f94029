// Package types defines the records the importer reads and writes.
package types

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only calendar format accepted for date cells.
const DateLayout = "2006-01-02"

// Project scopes issues, versions and categories.
type Project struct {
	ID         int64  `json:"id" yaml:"id" db:"id"`
	Name       string `json:"name" yaml:"name" db:"name"`
	Identifier string `json:"identifier" yaml:"identifier" db:"identifier"`
}

// User is an account that can author, be assigned to, or watch an issue.
type User struct {
	ID        int64  `json:"id" yaml:"id" db:"id"`
	Login     string `json:"login" yaml:"login" db:"login"`
	FirstName string `json:"firstname" yaml:"firstname" db:"firstname"`
	LastName  string `json:"lastname" yaml:"lastname" db:"lastname"`
	Anonymous bool   `json:"anonymous,omitempty" yaml:"anonymous" db:"anonymous"`
	Locked    bool   `json:"locked,omitempty" yaml:"locked" db:"locked"`
}

// Name returns the display name ("first last").
func (u *User) Name() string {
	if u.Anonymous {
		return "Anonymous"
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IssueStatus is a workflow state. Closed states block updates unless allowed.
type IssueStatus struct {
	ID       int64  `json:"id" yaml:"id" db:"id"`
	Name     string `json:"name" yaml:"name" db:"name"`
	IsClosed bool   `json:"is_closed" yaml:"is_closed" db:"is_closed"`
	Position int    `json:"position" yaml:"position" db:"position"`
}

// Tracker classifies issues (Bug, Feature, ...).
type Tracker struct {
	ID   int64  `json:"id" yaml:"id" db:"id"`
	Name string `json:"name" yaml:"name" db:"name"`
}

// EnumerationKind distinguishes the entries sharing the enumerations table.
type EnumerationKind string

const (
	EnumPriority EnumerationKind = "IssuePriority"
	EnumActivity EnumerationKind = "TimeEntryActivity"
)

// Enumeration is a named, orderable value such as a priority or a time
// tracking activity.
type Enumeration struct {
	ID        int64           `json:"id" yaml:"id" db:"id"`
	Kind      EnumerationKind `json:"kind" yaml:"kind" db:"kind"`
	Name      string          `json:"name" yaml:"name" db:"name"`
	IsDefault bool            `json:"is_default" yaml:"is_default" db:"is_default"`
	Position  int             `json:"position" yaml:"position" db:"position"`
}

// Version sharing scopes.
const (
	SharingNone   = "none"
	SharingSystem = "system"
)

// Version is a project milestone. System-shared versions are visible from
// every project.
type Version struct {
	ID        int64  `json:"id" yaml:"id" db:"id"`
	ProjectID int64  `json:"project_id" yaml:"project_id" db:"project_id"`
	Name      string `json:"name" yaml:"name" db:"name"`
	Status    string `json:"status" yaml:"status" db:"status"`
	Sharing   string `json:"sharing" yaml:"sharing" db:"sharing"`
}

// SharedWith reports whether the version can be assigned to issues of projectID.
func (v *Version) SharedWith(projectID int64) bool {
	return v.ProjectID == projectID || v.Sharing == SharingSystem
}

// Category is a per-project issue category.
type Category struct {
	ID        int64  `json:"id" yaml:"id" db:"id"`
	ProjectID int64  `json:"project_id" yaml:"project_id" db:"project_id"`
	Name      string `json:"name" yaml:"name" db:"name"`
}

// Issue is the record created or updated for each imported row.
type Issue struct {
	ID             int64              `json:"id"`
	ProjectID      int64              `json:"project_id"`
	TrackerID      int64              `json:"tracker_id"`
	StatusID       int64              `json:"status_id"`
	PriorityID     int64              `json:"priority_id"`
	AuthorID       int64              `json:"author_id"`
	AssigneeID     int64              `json:"assigned_to_id,omitempty"`
	CategoryID     int64              `json:"category_id,omitempty"`
	FixedVersionID int64              `json:"fixed_version_id,omitempty"`
	ParentID       int64              `json:"parent_id,omitempty"`
	Subject        string             `json:"subject"`
	Description    string             `json:"description,omitempty"`
	StartDate      *time.Time         `json:"start_date,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	DoneRatio      int                `json:"done_ratio"`
	EstimatedHours *float64           `json:"estimated_hours,omitempty"`
	CustomValues   map[int64][]string `json:"custom_values,omitempty"`
	WatcherIDs     []int64            `json:"watcher_ids,omitempty"`
	CreatedAt      time.Time          `json:"created_on"`
	UpdatedAt      time.Time          `json:"updated_on"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.StartDate != nil {
		d := *i.StartDate
		c.StartDate = &d
	}
	if i.DueDate != nil {
		d := *i.DueDate
		c.DueDate = &d
	}
	if i.EstimatedHours != nil {
		h := *i.EstimatedHours
		c.EstimatedHours = &h
	}
	if i.CustomValues != nil {
		c.CustomValues = make(map[int64][]string, len(i.CustomValues))
		for k, v := range i.CustomValues {
			c.CustomValues[k] = append([]string(nil), v...)
		}
	}
	c.WatcherIDs = append([]int64(nil), i.WatcherIDs...)
	return &c
}

// IsWatchedBy reports whether userID is already a watcher.
func (i *Issue) IsWatchedBy(userID int64) bool {
	for _, id := range i.WatcherIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SetCustomValue replaces the values stored for a custom field. Values form
// a set: repeats are dropped, keeping first-seen order.
func (i *Issue) SetCustomValue(fieldID int64, values []string) {
	if i.CustomValues == nil {
		i.CustomValues = make(map[int64][]string)
	}
	seen := make(map[string]bool, len(values))
	set := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			set = append(set, v)
		}
	}
	i.CustomValues[fieldID] = set
}

// Validate checks the attributes every store enforces before a write.
// All failing attributes are reported together.
func (i *Issue) Validate() error {
	var verr ValidationError
	if strings.TrimSpace(i.Subject) == "" {
		verr.Add("subject", "cannot be blank")
	} else if len([]rune(i.Subject)) > 255 {
		verr.Add("subject", fmt.Sprintf("is too long (maximum is 255 characters, got %d)", len([]rune(i.Subject))))
	}
	if i.ProjectID == 0 {
		verr.Add("project", "cannot be blank")
	}
	if i.TrackerID == 0 {
		verr.Add("tracker", "cannot be blank")
	}
	if i.StatusID == 0 {
		verr.Add("status", "cannot be blank")
	}
	if i.PriorityID == 0 {
		verr.Add("priority", "cannot be blank")
	}
	if i.AuthorID == 0 {
		verr.Add("author", "cannot be blank")
	}
	if i.DoneRatio < 0 || i.DoneRatio > 100 {
		verr.Add("done_ratio", fmt.Sprintf("must be between 0 and 100 (got %d)", i.DoneRatio))
	}
	if i.EstimatedHours != nil && *i.EstimatedHours < 0 {
		verr.Add("estimated_hours", "cannot be negative")
	}
	if i.StartDate != nil && i.DueDate != nil && i.DueDate.Before(*i.StartDate) {
		verr.Add("due_date", "must be greater than start date")
	}
	if i.ParentID != 0 && i.ParentID == i.ID {
		verr.Add("parent", "cannot be the issue itself")
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}

// Journal is a change note attached to an issue update.
type Journal struct {
	ID        int64     `json:"id"`
	IssueID   int64     `json:"issue_id"`
	UserID    int64     `json:"user_id"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_on"`
}

// TimeEntry records hours spent on an issue.
type TimeEntry struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	IssueID    int64     `json:"issue_id"`
	UserID     int64     `json:"user_id"`
	ActivityID int64     `json:"activity_id"`
	Hours      float64   `json:"hours"`
	SpentOn    time.Time `json:"spent_on"`
	Comments   string    `json:"comments,omitempty"`
}

// Validate checks a time entry before it is stored.
func (t *TimeEntry) Validate() error {
	var verr ValidationError
	if t.IssueID == 0 {
		verr.Add("issue", "cannot be blank")
	}
	if t.UserID == 0 {
		verr.Add("user", "cannot be blank")
	}
	if t.ActivityID == 0 {
		verr.Add("activity", "cannot be blank")
	}
	if t.Hours < 0 || t.Hours > 1000 {
		verr.Add("hours", "is invalid")
	}
	if t.SpentOn.IsZero() {
		verr.Add("spent_on", "cannot be blank")
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}
