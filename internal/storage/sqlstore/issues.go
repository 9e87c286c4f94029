package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

const issueColumns = `i.id, i.project_id, i.tracker_id, i.status_id, i.priority_id, i.author_id,
	i.assigned_to_id, i.category_id, i.fixed_version_id, i.parent_id, i.subject, i.description,
	i.start_date, i.due_date, i.done_ratio, i.estimated_hours, i.created_on, i.updated_on`

type issueRow struct {
	ID             int64           `db:"id"`
	ProjectID      int64           `db:"project_id"`
	TrackerID      int64           `db:"tracker_id"`
	StatusID       int64           `db:"status_id"`
	PriorityID     int64           `db:"priority_id"`
	AuthorID       int64           `db:"author_id"`
	AssigneeID     int64           `db:"assigned_to_id"`
	CategoryID     int64           `db:"category_id"`
	FixedVersionID int64           `db:"fixed_version_id"`
	ParentID       int64           `db:"parent_id"`
	Subject        string          `db:"subject"`
	Description    sql.NullString  `db:"description"`
	StartDate      sql.NullString  `db:"start_date"`
	DueDate        sql.NullString  `db:"due_date"`
	DoneRatio      int             `db:"done_ratio"`
	EstimatedHours sql.NullFloat64 `db:"estimated_hours"`
	CreatedOn      int64           `db:"created_on"`
	UpdatedOn      int64           `db:"updated_on"`
}

func (r *issueRow) issue() (*types.Issue, error) {
	issue := &types.Issue{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		TrackerID:      r.TrackerID,
		StatusID:       r.StatusID,
		PriorityID:     r.PriorityID,
		AuthorID:       r.AuthorID,
		AssigneeID:     r.AssigneeID,
		CategoryID:     r.CategoryID,
		FixedVersionID: r.FixedVersionID,
		ParentID:       r.ParentID,
		Subject:        r.Subject,
		Description:    r.Description.String,
		DoneRatio:      r.DoneRatio,
		CreatedAt:      time.Unix(r.CreatedOn, 0).UTC(),
		UpdatedAt:      time.Unix(r.UpdatedOn, 0).UTC(),
	}
	var err error
	if issue.StartDate, err = parseDate(r.StartDate); err != nil {
		return nil, fmt.Errorf("issue %d start_date: %w", r.ID, err)
	}
	if issue.DueDate, err = parseDate(r.DueDate); err != nil {
		return nil, fmt.Errorf("issue %d due_date: %w", r.ID, err)
	}
	if r.EstimatedHours.Valid {
		h := r.EstimatedHours.Float64
		issue.EstimatedHours = &h
	}
	return issue, nil
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(types.DateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(types.DateLayout)
}

func hours(h *float64) any {
	if h == nil {
		return nil
	}
	return *h
}

// GetIssue returns the issue with id, including custom values and watchers.
func (s *Store) GetIssue(ctx context.Context, id int64) (*types.Issue, error) {
	var row issueRow
	if err := s.get(ctx, &row, `SELECT `+issueColumns+` FROM issues i WHERE i.id = ?`, id); err != nil {
		return nil, notFound(err, "issue %d", id)
	}
	issue, err := row.issue()
	if err != nil {
		return nil, err
	}
	if err := s.loadExtras(ctx, []*types.Issue{issue}); err != nil {
		return nil, err
	}
	return issue, nil
}

// FindIssues returns issues matching filter ordered by id.
func (s *Store) FindIssues(ctx context.Context, filter storage.IssueFilter) ([]*types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues i WHERE 1 = 1`
	var args []any

	switch {
	case filter.CustomFieldID != 0:
		query += ` AND EXISTS (SELECT 1 FROM custom_values cv
			WHERE cv.issue_id = i.id AND cv.custom_field_id = ? AND cv.value = ?)`
		args = append(args, filter.CustomFieldID, filter.Value)
	case filter.Column == "":
	case !storage.IsFilterColumn(filter.Column):
		return nil, fmt.Errorf("find issues: unsupported column %q", filter.Column)
	case filter.Column == "done_ratio":
		n, err := strconv.Atoi(filter.Value)
		if err != nil {
			return nil, nil
		}
		query += ` AND i.done_ratio = ?`
		args = append(args, n)
	case filter.Column == "estimated_hours":
		h, err := strconv.ParseFloat(filter.Value, 64)
		if err != nil {
			return nil, nil
		}
		query += ` AND i.estimated_hours = ?`
		args = append(args, h)
	default:
		// Column is one of storage.FilterColumns, never caller text.
		query += ` AND i.` + filter.Column + ` = ?`
		args = append(args, filter.Value)
	}
	if filter.OpenOnly {
		query += ` AND i.status_id NOT IN (SELECT id FROM issue_statuses WHERE is_closed = ?)`
		args = append(args, true)
	}
	query += ` ORDER BY i.id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	var rows []issueRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	issues := make([]*types.Issue, 0, len(rows))
	for i := range rows {
		issue, err := rows[i].issue()
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	if err := s.loadExtras(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// loadExtras fills custom values and watchers.
func (s *Store) loadExtras(ctx context.Context, issues []*types.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	byID := make(map[int64]*types.Issue, len(issues))
	ids := make([]int64, 0, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
		ids = append(ids, issue.ID)
	}

	var values []struct {
		IssueID int64  `db:"issue_id"`
		FieldID int64  `db:"custom_field_id"`
		Value   string `db:"value"`
	}
	query, args, err := sqlx.In(`SELECT issue_id, custom_field_id, value FROM custom_values
		WHERE issue_id IN (?) ORDER BY issue_id, custom_field_id, position`, ids)
	if err != nil {
		return err
	}
	if err := s.selectAll(ctx, &values, query, args...); err != nil {
		return err
	}
	for _, v := range values {
		issue := byID[v.IssueID]
		issue.SetCustomValue(v.FieldID, append(issue.CustomValues[v.FieldID], v.Value))
	}

	var watchers []struct {
		IssueID int64 `db:"issue_id"`
		UserID  int64 `db:"user_id"`
	}
	query, args, err = sqlx.In(`SELECT issue_id, user_id FROM watchers
		WHERE issue_id IN (?) ORDER BY issue_id, position`, ids)
	if err != nil {
		return err
	}
	if err := s.selectAll(ctx, &watchers, query, args...); err != nil {
		return err
	}
	for _, w := range watchers {
		byID[w.IssueID].WatcherIDs = append(byID[w.IssueID].WatcherIDs, w.UserID)
	}
	return nil
}

// CreateIssue validates and stores issue. A non-zero ID is kept as supplied.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, opts storage.WriteOptions) error {
	if err := issue.Validate(); err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Second)
	args := []any{
		issue.ProjectID, issue.TrackerID, issue.StatusID, issue.PriorityID, issue.AuthorID,
		issue.AssigneeID, issue.CategoryID, issue.FixedVersionID, issue.ParentID,
		issue.Subject, issue.Description, formatDate(issue.StartDate), formatDate(issue.DueDate),
		issue.DoneRatio, hours(issue.EstimatedHours), now.Unix(), now.Unix(),
	}
	const columns = `project_id, tracker_id, status_id, priority_id, author_id,
		assigned_to_id, category_id, fixed_version_id, parent_id,
		subject, description, start_date, due_date, done_ratio, estimated_hours, created_on, updated_on`
	const values = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

	id := issue.ID
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if id != 0 {
			err := s.exec(ctx, tx, `INSERT INTO issues (id, `+columns+`) VALUES (?, `+values+`)`,
				append([]any{id}, args...)...)
			if err != nil {
				return err
			}
			if s.dialect.resyncSeq != "" {
				if _, err := tx.ExecContext(ctx, s.dialect.resyncSeq); err != nil {
					return err
				}
			}
		} else {
			var err error
			if id, err = s.insert(ctx, tx, `INSERT INTO issues (`+columns+`) VALUES (`+values+`)`, args...); err != nil {
				return err
			}
		}
		if err := s.writeExtras(ctx, tx, id, issue); err != nil {
			return err
		}
		return s.notify(ctx, tx, id, "issue_added", opts)
	})
	if err != nil {
		return err
	}
	issue.ID, issue.CreatedAt, issue.UpdatedAt = id, now, now
	return nil
}

// UpdateIssue replaces the stored issue and records journal when it has notes.
func (s *Store) UpdateIssue(ctx context.Context, issue *types.Issue, journal *types.Journal, opts storage.WriteOptions) error {
	if err := issue.Validate(); err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Second)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := sqlx.GetContext(ctx, tx, &n, s.db.Rebind(`SELECT COUNT(*) FROM issues WHERE id = ?`), issue.ID); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("issue %d: %w", issue.ID, storage.ErrNotFound)
		}
		err := s.exec(ctx, tx, `UPDATE issues SET
			project_id = ?, tracker_id = ?, status_id = ?, priority_id = ?, author_id = ?,
			assigned_to_id = ?, category_id = ?, fixed_version_id = ?, parent_id = ?,
			subject = ?, description = ?, start_date = ?, due_date = ?, done_ratio = ?,
			estimated_hours = ?, updated_on = ?
			WHERE id = ?`,
			issue.ProjectID, issue.TrackerID, issue.StatusID, issue.PriorityID, issue.AuthorID,
			issue.AssigneeID, issue.CategoryID, issue.FixedVersionID, issue.ParentID,
			issue.Subject, issue.Description, formatDate(issue.StartDate), formatDate(issue.DueDate),
			issue.DoneRatio, hours(issue.EstimatedHours), now.Unix(), issue.ID)
		if err != nil {
			return err
		}
		for _, table := range []string{"custom_values", "watchers"} {
			if err := s.exec(ctx, tx, `DELETE FROM `+table+` WHERE issue_id = ?`, issue.ID); err != nil {
				return err
			}
		}
		if err := s.writeExtras(ctx, tx, issue.ID, issue); err != nil {
			return err
		}

		if journal != nil && journal.Notes != "" {
			id, err := s.insert(ctx, tx, `INSERT INTO journals (issue_id, user_id, notes, created_on) VALUES (?, ?, ?, ?)`,
				issue.ID, journal.UserID, journal.Notes, now.Unix())
			if err != nil {
				return err
			}
			journal.ID, journal.IssueID, journal.CreatedAt = id, issue.ID, now
		}
		return s.notify(ctx, tx, issue.ID, "issue_edited", opts)
	})
	if err != nil {
		return err
	}
	issue.UpdatedAt = now
	return nil
}

func (s *Store) writeExtras(ctx context.Context, tx *sqlx.Tx, id int64, issue *types.Issue) error {
	for fieldID, values := range issue.CustomValues {
		for pos, v := range values {
			err := s.exec(ctx, tx, `INSERT INTO custom_values (issue_id, custom_field_id, position, value) VALUES (?, ?, ?, ?)`,
				id, fieldID, pos, v)
			if err != nil {
				return err
			}
		}
	}
	for pos, uid := range issue.WatcherIDs {
		if err := s.exec(ctx, tx, `INSERT INTO watchers (issue_id, user_id, position) VALUES (?, ?, ?)`, id, uid, pos); err != nil {
			return err
		}
	}
	return nil
}

// notify queues a change notification unless the write suppresses them.
func (s *Store) notify(ctx context.Context, tx *sqlx.Tx, issueID int64, event string, opts storage.WriteOptions) error {
	if opts.SuppressNotifications {
		return nil
	}
	_, err := s.insert(ctx, tx, `INSERT INTO notifications (issue_id, event, created_on) VALUES (?, ?, ?)`,
		issueID, event, s.now().Unix())
	return err
}

// Notifications returns how many change notifications are queued for issueID.
func (s *Store) Notifications(ctx context.Context, issueID int64) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE issue_id = ?`, issueID)
	return n, err
}
