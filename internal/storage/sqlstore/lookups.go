package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, storage.ErrNotFound)...)
	}
	return err
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	var p types.Project
	err := s.get(ctx, &p, `SELECT id, name, identifier FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "project %d", id)
	}
	return &p, nil
}

// FindProjectByName matches a project by exact name.
func (s *Store) FindProjectByName(ctx context.Context, name string) (*types.Project, error) {
	var p types.Project
	err := s.get(ctx, &p, `SELECT id, name, identifier FROM projects WHERE name = ? ORDER BY id LIMIT 1`, name)
	if err != nil {
		return nil, notFound(err, "project %q", name)
	}
	return &p, nil
}

const userColumns = `id, login, firstname, lastname, anonymous, locked`

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	if err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "user %d", id)
	}
	return &u, nil
}

// FindUserByLogin matches a login case-insensitively.
func (s *Store) FindUserByLogin(ctx context.Context, login string) (*types.User, error) {
	var u types.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users
		WHERE LOWER(login) = ? AND anonymous = ? ORDER BY id LIMIT 1`, strings.ToLower(login), false)
	if err != nil {
		return nil, notFound(err, "user %q", login)
	}
	return &u, nil
}

// ListUsers returns every non-anonymous user ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*types.User, error) {
	var out []*types.User
	err := s.selectAll(ctx, &out, `SELECT `+userColumns+` FROM users WHERE anonymous = ? ORDER BY id`, false)
	return out, err
}

// AnonymousUser returns the built-in anonymous account.
func (s *Store) AnonymousUser(ctx context.Context) (*types.User, error) {
	var u types.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE anonymous = ? ORDER BY id LIMIT 1`, true)
	if err != nil {
		return nil, notFound(err, "anonymous user")
	}
	return &u, nil
}

// CanWatch reports whether userID is an unlocked member of projectID.
func (s *Store) CanWatch(ctx context.Context, projectID, userID int64) (bool, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ? AND m.user_id = ? AND u.locked = ? AND u.anonymous = ?`,
		projectID, userID, false, false)
	return n > 0, err
}

// ListStatuses returns statuses ordered by position.
func (s *Store) ListStatuses(ctx context.Context) ([]*types.IssueStatus, error) {
	var out []*types.IssueStatus
	err := s.selectAll(ctx, &out, `SELECT id, name, is_closed, position FROM issue_statuses ORDER BY position, id`)
	return out, err
}

// ListTrackers returns every tracker.
func (s *Store) ListTrackers(ctx context.Context) ([]*types.Tracker, error) {
	var out []*types.Tracker
	err := s.selectAll(ctx, &out, `SELECT id, name FROM trackers ORDER BY id`)
	return out, err
}

// ListEnumerations returns the entries of kind ordered by position.
func (s *Store) ListEnumerations(ctx context.Context, kind types.EnumerationKind) ([]*types.Enumeration, error) {
	var out []*types.Enumeration
	err := s.selectAll(ctx, &out, `SELECT id, kind, name, is_default, position FROM enumerations
		WHERE kind = ? ORDER BY position, id`, string(kind))
	return out, err
}

// FindSharedVersion finds a version by name among those usable by projectID.
func (s *Store) FindSharedVersion(ctx context.Context, projectID int64, name string) (*types.Version, error) {
	var v types.Version
	err := s.get(ctx, &v, `SELECT id, project_id, name, status, sharing FROM versions
		WHERE name = ? AND (project_id = ? OR sharing = ?) ORDER BY id LIMIT 1`,
		name, projectID, types.SharingSystem)
	if err != nil {
		return nil, notFound(err, "version %q", name)
	}
	return &v, nil
}

// CreateVersion stores v and assigns its id.
func (s *Store) CreateVersion(ctx context.Context, v *types.Version) error {
	if strings.TrimSpace(v.Name) == "" {
		verr := &types.ValidationError{}
		verr.Add("name", "cannot be blank")
		return verr
	}
	id, err := s.insert(ctx, s.db, `INSERT INTO versions (project_id, name, status, sharing) VALUES (?, ?, ?, ?)`,
		v.ProjectID, v.Name, v.Status, v.Sharing)
	if err != nil {
		return classify(err)
	}
	v.ID = id
	return nil
}

// FindCategory finds a category by name within projectID.
func (s *Store) FindCategory(ctx context.Context, projectID int64, name string) (*types.Category, error) {
	var c types.Category
	err := s.get(ctx, &c, `SELECT id, project_id, name FROM issue_categories
		WHERE project_id = ? AND name = ? ORDER BY id LIMIT 1`, projectID, name)
	if err != nil {
		return nil, notFound(err, "category %q", name)
	}
	return &c, nil
}

// CreateCategory stores c and assigns its id.
func (s *Store) CreateCategory(ctx context.Context, c *types.Category) error {
	id, err := s.insert(ctx, s.db, `INSERT INTO issue_categories (project_id, name) VALUES (?, ?)`, c.ProjectID, c.Name)
	if err != nil {
		return classify(err)
	}
	c.ID = id
	return nil
}

type customFieldRow struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	Format         string         `db:"field_format"`
	Multiple       bool           `db:"multiple"`
	PossibleValues sql.NullString `db:"possible_values"`
	ProjectID      int64          `db:"project_id"`
}

// ListCustomFields returns the issue custom fields available to projectID.
func (s *Store) ListCustomFields(ctx context.Context, projectID int64) ([]*types.CustomField, error) {
	var rows []customFieldRow
	err := s.selectAll(ctx, &rows, `SELECT id, name, field_format, multiple, possible_values, project_id
		FROM custom_fields WHERE project_id = 0 OR project_id = ? ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.CustomField, 0, len(rows))
	for _, r := range rows {
		cf := &types.CustomField{
			ID:        r.ID,
			Name:      r.Name,
			Format:    types.FieldFormat(r.Format),
			Multiple:  r.Multiple,
			ProjectID: r.ProjectID,
		}
		if r.PossibleValues.String != "" {
			cf.PossibleValues = strings.Split(r.PossibleValues.String, "\n")
		}
		out = append(out, cf)
	}
	return out, nil
}
