package importer

import (
	"fmt"
	"sort"

	"github.com/two-pack/redmine-importer/internal/csvtable"
)

// Result summarizes a run.
type Result struct {
	Handled    int                  `json:"handled"`     // rows persisted successfully
	Updated    int                  `json:"updated"`     // handled rows that updated an existing issue
	Skipped    int                  `json:"skipped"`     // rows skipped by a guard or a missing target
	Failed     int                  `json:"failed"`      // rows that failed
	Messages   []string             `json:"messages"`    // diagnostics in row order
	Headers    []string             `json:"headers"`     // table header, for re-displaying failed rows
	FailedRows map[int]csvtable.Row `json:"failed_rows"` // keyed by failure order, starting at 1
	Projects   map[string]int       `json:"projects"`    // affected project name → rows
	Aborted    string               `json:"aborted,omitempty"`
}

func newResult(headers []string) *Result {
	return &Result{
		Headers:    headers,
		FailedRows: make(map[int]csvtable.Row),
		Projects:   make(map[string]int),
	}
}

// FailedPositions returns the keys of FailedRows in order.
func (r *Result) FailedPositions() []int {
	out := make([]int, 0, len(r.FailedRows))
	for k := range r.FailedRows {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Total is the number of rows that reached an outcome.
func (r *Result) Total() int {
	return r.Handled + r.Skipped + r.Failed
}

func (r *Result) record(row csvtable.Row, out *rowOutcome) {
	r.Messages = append(r.Messages, out.messages...)
	switch out.kind {
	case outcomeSuccess:
		r.Handled++
		if out.updated {
			r.Updated++
		}
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
		r.FailedRows[r.Failed] = row
	}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeSkipped
	outcomeFailed
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	}
	return "success"
}

// rowOutcome is what handling one row produced. Row-level problems never
// escape as errors; only fatal stops the run.
type rowOutcome struct {
	row      int
	kind     outcomeKind
	updated  bool
	partial  bool // persisted, but a custom field, watcher or time entry failed
	messages []string
	fatal    error
}

func (o *rowOutcome) note(format string, args ...any) {
	o.messages = append(o.messages, fmt.Sprintf("Row %d: ", o.row)+fmt.Sprintf(format, args...))
}

func (o *rowOutcome) skip(format string, args ...any) *rowOutcome {
	o.kind = outcomeSkipped
	o.messages = append(o.messages, fmt.Sprintf("Row %d skipped: ", o.row)+fmt.Sprintf(format, args...))
	return o
}

func (o *rowOutcome) fail(format string, args ...any) *rowOutcome {
	o.kind = outcomeFailed
	o.messages = append(o.messages, fmt.Sprintf("Row %d failed: ", o.row)+fmt.Sprintf(format, args...))
	return o
}
