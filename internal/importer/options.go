package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// Mapping binds a table column to a field key. Keys match built-in fields,
// custom field names and relation types ignoring case, with spaces and
// underscores interchangeable. An empty Field leaves the column unused.
type Mapping struct {
	Column string `json:"column" yaml:"column" toml:"column"`
	Field  string `json:"field" yaml:"field" toml:"field"`
}

// Options configures one import run. It must not change once Run starts.
type Options struct {
	ProjectID   int64     // default project for rows without a project column
	Mappings    []Mapping // in table column order
	UniqueField string    // column whose value identifies an issue

	UpdateIssue             bool  // update the issue matching the unique field instead of creating one
	UpdateOtherProject      bool  // allow updating issues of another project
	AllowClosedIssuesUpdate bool  // allow updating closed issues without reopening them
	AddCategories           bool  // create categories that do not exist
	AddVersions             bool  // create versions that do not exist
	UseIssueID              bool  // create issues with the id from the id column
	IgnoreNonExist          bool  // skip rows whose target issue does not exist instead of failing
	UseAnonymous            bool  // fall back to the anonymous user for unknown names
	DisableNotifications    bool  // suppress change notifications for this run
	DefaultTrackerID        int64 // tracker for rows without a tracker

	JournalField string    // column whose value becomes the update note
	SpentOn      time.Time // date of logged time; today when zero
}

// FieldKind is a built-in field a column can be mapped to.
type FieldKind int

const (
	fieldNone FieldKind = iota
	FieldID
	FieldProject
	FieldTracker
	FieldStatus
	FieldPriority
	FieldSubject
	FieldDescription
	FieldAuthor
	FieldAssignee
	FieldCategory
	FieldVersion
	FieldStartDate
	FieldDueDate
	FieldDoneRatio
	FieldEstimatedHours
	FieldParent
	FieldWatchers
	FieldSpentTime
	FieldActivity
	FieldUserForSpentTime
)

var fieldNames = map[FieldKind]string{
	FieldID:               "id",
	FieldProject:          "project",
	FieldTracker:          "tracker",
	FieldStatus:           "status",
	FieldPriority:         "priority",
	FieldSubject:          "subject",
	FieldDescription:      "description",
	FieldAuthor:           "author",
	FieldAssignee:         "assigned_to",
	FieldCategory:         "category",
	FieldVersion:          "fixed_version",
	FieldStartDate:        "start_date",
	FieldDueDate:          "due_date",
	FieldDoneRatio:        "done_ratio",
	FieldEstimatedHours:   "estimated_hours",
	FieldParent:           "parent_issue",
	FieldWatchers:         "watchers",
	FieldSpentTime:        "spent_time",
	FieldActivity:         "activity",
	FieldUserForSpentTime: "user_for_spent_time",
}

var fieldsByName = func() map[string]FieldKind {
	m := make(map[string]FieldKind, len(fieldNames))
	for k, n := range fieldNames {
		m[n] = k
	}
	return m
}()

func (k FieldKind) String() string {
	if n, ok := fieldNames[k]; ok {
		return n
	}
	return "none"
}

// BuiltinFields returns the built-in field keys in alphabetical order.
func BuiltinFields() []string {
	out := make([]string, 0, len(fieldNames))
	for _, n := range fieldNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type customColumn struct {
	column string
	field  *types.CustomField
}

type relationColumn struct {
	column string
	typ    types.RelationType
}

// uniqueKey says how a unique value is looked up: by id, by an issue
// column, or by a custom field.
type uniqueKey struct {
	byID          bool
	column        string
	customFieldID int64
}

func (k uniqueKey) isSet() bool {
	return k.byID || k.column != "" || k.customFieldID != 0
}

// plan is the compiled, immutable dispatch table for a run.
type plan struct {
	columns      map[FieldKind]string
	customs      []customColumn
	relations    []relationColumn
	uniqueColumn string
	unique       uniqueKey
}

// compile validates opts against the fields available to the default
// project and resolves every mapping once.
func compile(opts Options, customFields []*types.CustomField) (*plan, error) {
	p := &plan{columns: make(map[FieldKind]string)}
	byColumn := make(map[string]string, len(opts.Mappings))

	for _, m := range opts.Mappings {
		key := csvtable.CanonicalKey(m.Field)
		if key == "" {
			continue
		}
		byColumn[m.Column] = key
		if kind, ok := fieldsByName[key]; ok {
			if prev, dup := p.columns[kind]; dup {
				return nil, &ConfigError{Err: ErrDuplicateMapping, Detail: fmt.Sprintf("%s mapped to both %q and %q", key, prev, m.Column)}
			}
			p.columns[kind] = m.Column
			continue
		}
		if rt := types.RelationType(key); rt.IsValid() {
			p.relations = append(p.relations, relationColumn{column: m.Column, typ: rt})
			continue
		}
		if cf := findCustomField(customFields, key); cf != nil {
			p.customs = append(p.customs, customColumn{column: m.Column, field: cf})
			continue
		}
		return nil, &ConfigError{Err: ErrUnknownField, Detail: fmt.Sprintf("%q (column %q)", m.Field, m.Column)}
	}

	if opts.UniqueField != "" {
		key, ok := byColumn[opts.UniqueField]
		if !ok {
			return nil, &ConfigError{Err: ErrUnsupportedUniqueField, Detail: fmt.Sprintf("column %q is not mapped", opts.UniqueField)}
		}
		p.uniqueColumn = opts.UniqueField
		switch kind := fieldsByName[key]; {
		case kind == FieldID:
			p.unique.byID = true
		case kind != fieldNone && storage.IsFilterColumn(key):
			p.unique.column = key
		case kind == fieldNone:
			if cf := findCustomField(customFields, key); cf != nil {
				p.unique.customFieldID = cf.ID
				break
			}
			return nil, &ConfigError{Err: ErrUnsupportedUniqueField, Detail: key}
		default:
			return nil, &ConfigError{Err: ErrUnsupportedUniqueField, Detail: key}
		}
	}

	if !p.unique.isSet() {
		switch {
		case opts.UpdateIssue:
			return nil, &ConfigError{Err: ErrUniqueFieldRequired, Detail: "updating issues"}
		case p.columns[FieldParent] != "":
			return nil, &ConfigError{Err: ErrUniqueFieldRequired, Detail: "linking parent issues"}
		case len(p.relations) > 0:
			return nil, &ConfigError{Err: ErrUniqueFieldRequired, Detail: "linking related issues"}
		}
	}
	if opts.UseIssueID && p.columns[FieldID] == "" {
		return nil, &ConfigError{Err: ErrIDMappingRequired}
	}
	return p, nil
}

func findCustomField(fields []*types.CustomField, key string) *types.CustomField {
	for _, cf := range fields {
		if csvtable.CanonicalKey(cf.Name) == key {
			return cf
		}
	}
	return nil
}

// checkHeaders reports mapped columns the table does not have.
func (p *plan) checkHeaders(headers []string, opts Options) error {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}
	var missing []string
	for _, m := range opts.Mappings {
		if strings.TrimSpace(m.Field) != "" && !have[m.Column] {
			missing = append(missing, m.Column)
		}
	}
	if opts.JournalField != "" && !have[opts.JournalField] {
		missing = append(missing, opts.JournalField)
	}
	if len(missing) > 0 {
		return &ConfigError{Err: ErrUnknownColumn, Detail: strings.Join(missing, ", ")}
	}
	return nil
}
