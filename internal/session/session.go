// Package session holds tables staged for import. A user has at most one
// staged table; staging again replaces it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/two-pack/redmine-importer/internal/csvtable"
)

// TokenLayout formats the creation time echoed back by the client to prove
// it is importing the table it previewed.
const TokenLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned when the user has no staged table.
var ErrNotFound = errors.New("no staged import")

// Session is a staged table awaiting import.
type Session struct {
	UserID    int64     `json:"user_id" db:"user_id"`
	Filename  string    `json:"filename" db:"filename"`
	Encoding  string    `json:"encoding" db:"encoding"`
	ColSep    string    `json:"col_sep" db:"col_sep"`
	QuoteChar string    `json:"quote_char" db:"quote_char"`
	CSVData   string    `json:"csv_data" db:"csv_data"`
	CreatedAt time.Time `json:"created" db:"-"`
}

// Token identifies this staging of the table.
func (s *Session) Token() string {
	return s.CreatedAt.UTC().Format(TokenLayout)
}

// Dialect returns the parse options recorded at staging time.
func (s *Session) Dialect() (csvtable.Options, error) {
	return csvtable.OptionsFrom(s.ColSep, s.QuoteChar)
}

// Store persists staged sessions.
type Store interface {
	// Save stores s, replacing any session already staged by s.UserID.
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, userID int64) (*Session, error)
	Delete(ctx context.Context, userID int64) error
	// PurgeBefore deletes sessions created before cutoff and returns how
	// many were removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}
