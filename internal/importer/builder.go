package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// batch owns the state of one run: options, compiled plan, caches and the
// result accumulator.
type batch struct {
	store      storage.Store
	opts       Options
	plan       *plan
	write      storage.WriteOptions
	resolver   *Resolver
	locator    *locator
	project    *types.Project
	actor      *types.User
	spentOn    time.Time
	retryDelay time.Duration
	result     *Result
}

// cell returns the trimmed value of the column mapped to kind.
func (b *batch) cell(row csvtable.Row, kind FieldKind) string {
	col, ok := b.plan.columns[kind]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row.Get(col))
}

// rowRefs are the references resolved for a row before it is applied.
type rowRefs struct {
	project    *types.Project
	status     *types.IssueStatus
	trackerID  int64
	priorityID int64
	authorID   int64
	assigneeID int64
	categoryID int64
	versionID  int64
}

// processRow takes a row from New through Persisted, or stops it as
// skipped or failed.
func (b *batch) processRow(ctx context.Context, row csvtable.Row) *rowOutcome {
	out := &rowOutcome{row: row.Index}

	refs, ok := b.resolveRefs(ctx, row, out)
	if !ok {
		return out
	}

	issue := &types.Issue{ProjectID: refs.project.ID, AuthorID: refs.authorID}
	if b.opts.UseIssueID {
		if v := b.cell(row, FieldID); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				return out.fail("%q is not a valid issue id", v)
			}
			issue.ID = id
		}
	}

	var journal *types.Journal
	if b.opts.UpdateIssue {
		existing, stop := b.locateForUpdate(ctx, row, refs, out)
		if stop {
			return out
		}
		if existing != nil {
			issue = existing
			out.updated = true
			journal = b.journalFor(ctx, row)
		}
	}
	b.result.Projects[refs.project.Name]++

	if err := b.populate(ctx, issue, row, refs); err != nil {
		return out.fail("%v", err)
	}
	if !b.linkParent(ctx, issue, row, out) {
		return out
	}
	b.applyCustomFields(ctx, issue, row, out)
	b.applyWatchers(ctx, issue, row, out)

	if !b.persist(ctx, issue, journal, out) {
		return out
	}
	b.locator.remember(row.Get(b.plan.uniqueColumn), issue)
	b.logTime(ctx, issue, row, out)

	if out.partial {
		return out.fail("issue #%d saved with errors", issue.ID)
	}
	b.linkRelations(ctx, issue, row, out)
	return out
}

// resolveRefs resolves the row's named references. Unknown enumerations
// and categories are noted and left unset; unknown users and versions fail
// the row.
func (b *batch) resolveRefs(ctx context.Context, row csvtable.Row, out *rowOutcome) (*rowRefs, bool) {
	refs := &rowRefs{project: b.project, authorID: b.actor.ID}

	if name := b.cell(row, FieldProject); name != "" {
		p, err := b.resolver.Project(ctx, name)
		switch {
		case err == nil:
			refs.project = p
		case errors.Is(err, storage.ErrNotFound):
			out.note("project %q not found, using %q", name, b.project.Name)
		default:
			out.fail("%v", err)
			return nil, false
		}
	}

	if name := b.cell(row, FieldTracker); name != "" {
		id, err := b.resolver.Tracker(ctx, name)
		if !b.enumResult(err, "tracker", name, out) {
			return nil, false
		}
		refs.trackerID = id
	}
	if name := b.cell(row, FieldStatus); name != "" {
		st, err := b.resolver.Status(ctx, name)
		if !b.enumResult(err, "status", name, out) {
			return nil, false
		}
		refs.status = st
	}
	if name := b.cell(row, FieldPriority); name != "" {
		id, err := b.resolver.Priority(ctx, name)
		if !b.enumResult(err, "priority", name, out) {
			return nil, false
		}
		refs.priorityID = id
	}

	if name := b.cell(row, FieldAuthor); name != "" {
		id, err := b.resolver.Actor(ctx, name)
		if err != nil {
			out.fail("author: %v", err)
			return nil, false
		}
		refs.authorID = id
	}

	if name := b.cell(row, FieldCategory); name != "" {
		id, err := b.resolver.Category(ctx, refs.project.ID, name)
		if !b.enumResult(err, "category", name, out) {
			return nil, false
		}
		refs.categoryID = id
	}

	if name := b.cell(row, FieldAssignee); name != "" {
		id, err := b.resolver.Actor(ctx, name)
		if err != nil {
			out.fail("assignee: %v", err)
			return nil, false
		}
		refs.assigneeID = id
	}
	if name := b.cell(row, FieldVersion); name != "" {
		id, err := b.resolver.Version(ctx, refs.project.ID, name)
		if err != nil {
			out.fail("target version: %v", err)
			return nil, false
		}
		refs.versionID = id
	}
	return refs, true
}

// enumResult notes an unmatched name and reports whether the row may go on.
func (b *batch) enumResult(err error, field, name string, out *rowOutcome) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, storage.ErrNotFound) {
		out.note("%s %q not found, leaving it unset", field, name)
		return true
	}
	out.fail("%s: %v", field, err)
	return false
}

// locateForUpdate finds the issue the row updates and applies the guards.
// It returns nil with stop=false when the row should create a new issue.
func (b *batch) locateForUpdate(ctx context.Context, row csvtable.Row, refs *rowRefs, out *rowOutcome) (*types.Issue, bool) {
	value := strings.TrimSpace(row.Get(b.plan.uniqueColumn))
	existing, err := b.locator.locate(ctx, value)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoMatch):
		if b.opts.IgnoreNonExist {
			out.skip("no issue with %s %q", b.plan.uniqueColumn, value)
			return nil, true
		}
		if value != "" {
			out.fail("update failed, %v", err)
			return nil, true
		}
		return nil, false
	case errors.Is(err, ErrAmbiguous):
		out.fail("update failed, %v", err)
		return nil, true
	default:
		out.fail("%v", err)
		return nil, true
	}

	if existing.ProjectID != refs.project.ID && !b.opts.UpdateOtherProject {
		out.skip("issue #%d belongs to another project", existing.ID)
		return nil, true
	}
	closed, err := b.resolver.IsClosed(ctx, existing.StatusID)
	if err != nil {
		out.fail("%v", err)
		return nil, true
	}
	reopening := refs.status != nil && !refs.status.IsClosed
	if closed && !b.opts.AllowClosedIssuesUpdate && !reopening {
		out.skip("issue #%d is closed", existing.ID)
		return nil, true
	}
	return existing, false
}

// journalFor builds the update note. Its author is the user_for_spent_time
// user when the note is not blank and that user resolves.
func (b *batch) journalFor(ctx context.Context, row csvtable.Row) *types.Journal {
	j := &types.Journal{UserID: b.actor.ID}
	if b.opts.JournalField == "" {
		return j
	}
	j.Notes = strings.TrimSpace(row.Get(b.opts.JournalField))
	if j.Notes == "" {
		return j
	}
	if name := b.cell(row, FieldUserForSpentTime); name != "" {
		if id, err := b.resolver.Actor(ctx, name); err == nil {
			j.UserID = id
		}
	}
	return j
}

// populate copies row values onto issue. Status, priority and subject keep
// their current value when the cell is blank; other attributes are only
// overwritten by non-blank cells.
func (b *batch) populate(ctx context.Context, issue *types.Issue, row csvtable.Row, refs *rowRefs) error {
	if refs.trackerID != 0 {
		issue.TrackerID = refs.trackerID
	} else if issue.TrackerID == 0 {
		issue.TrackerID = b.opts.DefaultTrackerID
	}
	if refs.status != nil {
		issue.StatusID = refs.status.ID
	} else if issue.StatusID == 0 {
		st, err := b.resolver.DefaultStatus(ctx)
		if err != nil {
			return err
		}
		issue.StatusID = st.ID
	}
	if refs.priorityID != 0 {
		issue.PriorityID = refs.priorityID
	} else if issue.PriorityID == 0 {
		if id, err := b.resolver.DefaultPriority(ctx); err == nil {
			issue.PriorityID = id
		}
	}
	if v := b.cell(row, FieldSubject); v != "" {
		issue.Subject = v
	}
	if col, ok := b.plan.columns[FieldDescription]; ok {
		if v := row.Get(col); strings.TrimSpace(v) != "" {
			issue.Description = v
		}
	}
	if refs.categoryID != 0 {
		issue.CategoryID = refs.categoryID
	}
	if refs.assigneeID != 0 {
		issue.AssigneeID = refs.assigneeID
	}
	if refs.versionID != 0 {
		issue.FixedVersionID = refs.versionID
	}

	for _, d := range []struct {
		kind FieldKind
		dst  **time.Time
	}{{FieldStartDate, &issue.StartDate}, {FieldDueDate, &issue.DueDate}} {
		v := b.cell(row, d.kind)
		if v == "" {
			continue
		}
		t, err := time.Parse(types.DateLayout, v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a date (expected YYYY-MM-DD)", d.kind, v)
		}
		*d.dst = &t
	}
	if v := b.cell(row, FieldDoneRatio); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("done_ratio: %q is not a number", v)
		}
		issue.DoneRatio = n
	}
	if v := b.cell(row, FieldEstimatedHours); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("estimated_hours: %q is not a number", v)
		}
		issue.EstimatedHours = &h
	}
	return nil
}

// linkParent sets the parent issue. A missing parent is noted and left
// unset when IgnoreNonExist is on; otherwise it fails the row.
func (b *batch) linkParent(ctx context.Context, issue *types.Issue, row csvtable.Row, out *rowOutcome) bool {
	v := b.cell(row, FieldParent)
	if v == "" {
		return true
	}
	parent, err := b.locator.locate(ctx, v)
	switch {
	case err == nil:
		issue.ParentID = parent.ID
		return true
	case errors.Is(err, ErrNoMatch) && b.opts.IgnoreNonExist:
		out.note("parent issue %q not found, leaving it unset", v)
		return true
	default:
		out.fail("parent issue: %v", err)
		return false
	}
}

// persist writes the issue, retrying once on a transient conflict.
func (b *batch) persist(ctx context.Context, issue *types.Issue, journal *types.Journal, out *rowOutcome) bool {
	create := !out.updated
	op := func() error {
		var err error
		if create {
			err = b.store.CreateIssue(ctx, issue, b.write)
		} else {
			err = b.store.UpdateIssue(ctx, issue, journal, b.write)
		}
		if err == nil || errors.Is(err, storage.ErrWriteConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(b.retryDelay), 1), ctx)
	err := backoff.Retry(op, bo)
	if err == nil {
		return true
	}

	var verr *types.ValidationError
	switch {
	case errors.Is(err, storage.ErrDuplicateID):
		out.fail("issue id %d already exists", issue.ID)
	case errors.As(err, &verr):
		for _, f := range verr.Fields {
			out.note("%s %s", f.Field, f.Message)
		}
		out.fail("data validation failed")
	default:
		out.fail("%v", err)
	}
	return false
}
