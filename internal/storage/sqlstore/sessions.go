package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/two-pack/redmine-importer/internal/session"
)

type sessionRow struct {
	UserID    int64          `db:"user_id"`
	Filename  string         `db:"filename"`
	Encoding  string         `db:"encoding"`
	ColSep    string         `db:"col_sep"`
	QuoteChar string         `db:"quote_char"`
	CSVData   sql.NullString `db:"csv_data"`
	CreatedOn int64          `db:"created_on"`
}

// Save stores sess, replacing any table staged by the same user.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.exec(ctx, tx, `DELETE FROM import_in_progress WHERE user_id = ?`, sess.UserID); err != nil {
			return err
		}
		return s.exec(ctx, tx, `INSERT INTO import_in_progress
			(user_id, filename, encoding, col_sep, quote_char, csv_data, created_on) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sess.UserID, sess.Filename, sess.Encoding, sess.ColSep, sess.QuoteChar, sess.CSVData, sess.CreatedAt.Unix())
	})
}

// Get returns the table staged by userID.
func (s *Store) Get(ctx context.Context, userID int64) (*session.Session, error) {
	var r sessionRow
	err := s.get(ctx, &r, `SELECT user_id, filename, encoding, col_sep, quote_char, csv_data, created_on
		FROM import_in_progress WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, session.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &session.Session{
		UserID:    r.UserID,
		Filename:  r.Filename,
		Encoding:  r.Encoding,
		ColSep:    r.ColSep,
		QuoteChar: r.QuoteChar,
		CSVData:   r.CSVData.String,
		CreatedAt: time.Unix(r.CreatedOn, 0).UTC(),
	}, nil
}

// Delete drops the table staged by userID, if any.
func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.exec(ctx, s.db, `DELETE FROM import_in_progress WHERE user_id = ?`, userID)
}

// PurgeBefore deletes tables staged before cutoff.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM import_in_progress WHERE created_on < ?`), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
