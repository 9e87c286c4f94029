package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/two-pack/redmine-importer/internal/storage"
)

var (
	// ErrNoImportInProgress is returned by Run when the actor has no staged table.
	ErrNoImportInProgress = errors.New("no import is currently in progress")
	// ErrImportAlreadyInProgress is returned when the token echoed by the
	// caller does not match the staged table, e.g. it was replaced.
	ErrImportAlreadyInProgress = errors.New("an import is already in progress")
	// ErrInvalidEncoding is returned when staged bytes are not valid in the
	// declared encoding.
	ErrInvalidEncoding = errors.New("file is not valid in the declared encoding")
	// ErrEmptyTable is returned when the staged table has no data rows.
	ErrEmptyTable = errors.New("table has no data rows")

	// ErrUniqueFieldRequired: update mode, parent links and relations all
	// need a unique field to locate issues.
	ErrUniqueFieldRequired = errors.New("a unique field is required")
	// ErrIDMappingRequired: supplied ids need a column mapped to id.
	ErrIDMappingRequired = errors.New("a column must be mapped to id")
	// ErrUnsupportedUniqueField: the unique column maps to a field issues
	// cannot be looked up by.
	ErrUnsupportedUniqueField = errors.New("field cannot be used as unique field")
	// ErrUnknownField: a mapping names a field that does not exist.
	ErrUnknownField = errors.New("unknown field")
	// ErrDuplicateMapping: two columns map to the same built-in field.
	ErrDuplicateMapping = errors.New("field mapped more than once")
	// ErrUnknownColumn: a mapping names a column missing from the header.
	ErrUnknownColumn = errors.New("column not in table header")

	// ErrNoMatch is returned when no issue has the unique value.
	ErrNoMatch = errors.New("no issue matches the unique value")
	// ErrAmbiguous is returned when more than one issue has the unique value.
	ErrAmbiguous = errors.New("more than one issue matches the unique value")
	// ErrAmbiguousRelation aborts a run whose relation target is ambiguous.
	ErrAmbiguousRelation = errors.New("ambiguous relation target")
)

// ConfigError rejects a configuration before any row is processed.
type ConfigError struct {
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return "invalid import configuration: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid import configuration: %v: %s", e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NotFoundError reports a reference name that resolved to nothing.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Unwrap() error { return storage.ErrNotFound }

// MissingHeadersError lists the 1-based positions of blank header cells.
type MissingHeadersError struct {
	Positions []int
}

func (e *MissingHeadersError) Error() string {
	pos := make([]string, len(e.Positions))
	for i, p := range e.Positions {
		pos[i] = fmt.Sprint(p)
	}
	return "column header missing at position " + strings.Join(pos, ", ")
}
