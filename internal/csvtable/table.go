package csvtable

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Row is one data record keyed by the table headers.
type Row struct {
	Index   int      `json:"index"` // 1-based position among data rows
	Line    int      `json:"line"`  // physical line the record started on
	Headers []string `json:"headers"`
	Values  []string `json:"values"`
}

// Get returns the cell under header col, or "" when the column or cell is
// missing. Blank cells are treated as null by callers.
func (r Row) Get(col string) string {
	for i, h := range r.Headers {
		if h == col {
			if i < len(r.Values) {
				return r.Values[i]
			}
			return ""
		}
	}
	return ""
}

// Map returns the row as header → value.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Headers))
	for i, h := range r.Headers {
		if i < len(r.Values) {
			m[h] = r.Values[i]
		} else {
			m[h] = ""
		}
	}
	return m
}

// Table iterates data rows after the header line.
type Table struct {
	Headers []string
	r       *Reader
	index   int
}

// Open reads the header line. Input without one yields ErrEmpty.
func Open(src io.Reader, opts Options) (*Table, error) {
	r := NewReader(src, opts)
	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	headers := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(Normalize(h))
	}
	return &Table{Headers: headers, r: r}, nil
}

// Next returns the next non-blank data row, or io.EOF.
func (t *Table) Next() (Row, error) {
	for {
		rec, err := t.r.Read()
		if err != nil {
			return Row{}, err
		}
		if blank(rec) {
			continue
		}
		t.index++
		values := make([]string, len(rec))
		for i, v := range rec {
			values[i] = Normalize(v)
		}
		return Row{Index: t.index, Line: t.r.Line(), Headers: t.Headers, Values: values}, nil
	}
}

func blank(rec []string) bool {
	return len(rec) == 1 && rec[0] == ""
}

// Normalize replaces invalid UTF-8 sequences with '?'.
func Normalize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "?")
}

// CanonicalKey folds a column or field name for matching: trimmed, lower
// case, spaces as underscores.
func CanonicalKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}
