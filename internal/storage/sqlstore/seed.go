package sqlstore

import (
	"context"
	"strings"

	"github.com/two-pack/redmine-importer/internal/types"
)

// insertWithID stores a row under its supplied id, or lets the database
// pick one when id is zero.
func (s *Store) insertWithID(ctx context.Context, id *int64, table, columns string, args ...any) error {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	if *id != 0 {
		err := s.exec(ctx, s.db, `INSERT INTO `+table+` (id, `+columns+`) VALUES (?, `+marks+`)`,
			append([]any{*id}, args...)...)
		if err != nil {
			return classify(err)
		}
		if s.dialect.name == "postgres" {
			_, err = s.db.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), (SELECT MAX(id) FROM `+table+`))`)
		}
		return err
	}
	newID, err := s.insert(ctx, s.db, `INSERT INTO `+table+` (`+columns+`) VALUES (`+marks+`)`, args...)
	if err != nil {
		return classify(err)
	}
	*id = newID
	return nil
}

// CreateProject stores p, assigning an id when zero.
func (s *Store) CreateProject(ctx context.Context, p *types.Project) error {
	return s.insertWithID(ctx, &p.ID, "projects", "name, identifier", p.Name, p.Identifier)
}

// CreateUser stores u, assigning an id when zero.
func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	return s.insertWithID(ctx, &u.ID, "users", "login, firstname, lastname, anonymous, locked",
		u.Login, u.FirstName, u.LastName, u.Anonymous, u.Locked)
}

// AddMember makes userID a member of projectID.
func (s *Store) AddMember(ctx context.Context, projectID, userID int64) error {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM members WHERE project_id = ? AND user_id = ?`, projectID, userID); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.exec(ctx, s.db, `INSERT INTO members (project_id, user_id) VALUES (?, ?)`, projectID, userID)
}

// CreateStatus stores st.
func (s *Store) CreateStatus(ctx context.Context, st *types.IssueStatus) error {
	return s.insertWithID(ctx, &st.ID, "issue_statuses", "name, is_closed, position", st.Name, st.IsClosed, st.Position)
}

// CreateTracker stores t.
func (s *Store) CreateTracker(ctx context.Context, t *types.Tracker) error {
	return s.insertWithID(ctx, &t.ID, "trackers", "name", t.Name)
}

// CreateEnumeration stores e.
func (s *Store) CreateEnumeration(ctx context.Context, e *types.Enumeration) error {
	return s.insertWithID(ctx, &e.ID, "enumerations", "kind, name, is_default, position",
		string(e.Kind), e.Name, e.IsDefault, e.Position)
}

// CreateCustomField stores cf.
func (s *Store) CreateCustomField(ctx context.Context, cf *types.CustomField) error {
	return s.insertWithID(ctx, &cf.ID, "custom_fields", "name, field_format, multiple, possible_values, project_id",
		cf.Name, string(cf.Format), cf.Multiple, strings.Join(cf.PossibleValues, "\n"), cf.ProjectID)
}
