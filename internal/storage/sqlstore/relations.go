package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// ListRelations returns links touching issueID.
func (s *Store) ListRelations(ctx context.Context, issueID int64) ([]*types.Relation, error) {
	var out []*types.Relation
	err := s.selectAll(ctx, &out, `SELECT id, issue_from_id, issue_to_id, relation_type FROM issue_relations
		WHERE issue_from_id = ? OR issue_to_id = ? ORDER BY id`, issueID, issueID)
	return out, err
}

// CreateRelation normalizes and stores rel. A second link between the same
// two issues, in either direction, is rejected.
func (s *Store) CreateRelation(ctx context.Context, rel *types.Relation) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	rel.Normalize()
	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		err := sqlx.GetContext(ctx, tx, &n, s.db.Rebind(`SELECT COUNT(*) FROM issues WHERE id IN (?, ?)`),
			rel.IssueFromID, rel.IssueToID)
		if err != nil {
			return err
		}
		if n < 2 {
			return fmt.Errorf("relation %d-%d: %w", rel.IssueFromID, rel.IssueToID, storage.ErrNotFound)
		}
		err = sqlx.GetContext(ctx, tx, &n, s.db.Rebind(`SELECT COUNT(*) FROM issue_relations
			WHERE (issue_from_id = ? AND issue_to_id = ?) OR (issue_from_id = ? AND issue_to_id = ?)`),
			rel.IssueFromID, rel.IssueToID, rel.IssueToID, rel.IssueFromID)
		if err != nil {
			return err
		}
		if n > 0 {
			verr := &types.ValidationError{}
			verr.Add("issue_to_id", "has already been taken")
			return verr
		}
		id, err = s.insert(ctx, tx, `INSERT INTO issue_relations (issue_from_id, issue_to_id, relation_type) VALUES (?, ?, ?)`,
			rel.IssueFromID, rel.IssueToID, string(rel.Type))
		return err
	})
	if err != nil {
		return err
	}
	rel.ID = id
	return nil
}

// CreateTimeEntry validates and stores entry.
func (s *Store) CreateTimeEntry(ctx context.Context, entry *types.TimeEntry, opts storage.WriteOptions) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	id, err := s.insert(ctx, s.db, `INSERT INTO time_entries
		(project_id, issue_id, user_id, activity_id, hours, spent_on, comments) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ProjectID, entry.IssueID, entry.UserID, entry.ActivityID, entry.Hours,
		entry.SpentOn.Format(types.DateLayout), entry.Comments)
	if err != nil {
		return classify(err)
	}
	entry.ID = id
	return nil
}

// TimeEntries returns the time logged against issueID.
func (s *Store) TimeEntries(ctx context.Context, issueID int64) ([]*types.TimeEntry, error) {
	var rows []struct {
		ID         int64   `db:"id"`
		ProjectID  int64   `db:"project_id"`
		IssueID    int64   `db:"issue_id"`
		UserID     int64   `db:"user_id"`
		ActivityID int64   `db:"activity_id"`
		Hours      float64 `db:"hours"`
		SpentOn    string  `db:"spent_on"`
		Comments   string  `db:"comments"`
	}
	err := s.selectAll(ctx, &rows, `SELECT id, project_id, issue_id, user_id, activity_id, hours, spent_on, comments
		FROM time_entries WHERE issue_id = ? ORDER BY id`, issueID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.TimeEntry, 0, len(rows))
	for _, r := range rows {
		spent, err := time.Parse(types.DateLayout, r.SpentOn)
		if err != nil {
			return nil, fmt.Errorf("time entry %d: %w", r.ID, err)
		}
		out = append(out, &types.TimeEntry{
			ID: r.ID, ProjectID: r.ProjectID, IssueID: r.IssueID, UserID: r.UserID,
			ActivityID: r.ActivityID, Hours: r.Hours, SpentOn: spent, Comments: r.Comments,
		})
	}
	return out, nil
}

// Journals returns the notes recorded for issueID.
func (s *Store) Journals(ctx context.Context, issueID int64) ([]*types.Journal, error) {
	var rows []struct {
		ID        int64  `db:"id"`
		IssueID   int64  `db:"issue_id"`
		UserID    int64  `db:"user_id"`
		Notes     string `db:"notes"`
		CreatedOn int64  `db:"created_on"`
	}
	err := s.selectAll(ctx, &rows, `SELECT id, issue_id, user_id, notes, created_on FROM journals
		WHERE issue_id = ? ORDER BY id`, issueID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Journal, 0, len(rows))
	for _, r := range rows {
		out = append(out, &types.Journal{
			ID: r.ID, IssueID: r.IssueID, UserID: r.UserID, Notes: r.Notes,
			CreatedAt: time.Unix(r.CreatedOn, 0).UTC(),
		})
	}
	return out, nil
}
