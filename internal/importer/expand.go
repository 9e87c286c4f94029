package importer

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/two-pack/redmine-importer/internal/csvtable"
	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

var spentTimePattern = regexp.MustCompile(`\A[-+]?[0-9]*\.?[0-9]+\z`)

// applyCustomFields sets every mapped custom field with a non-blank cell.
// A failing field is noted and left untouched; the row is then partial.
func (b *batch) applyCustomFields(ctx context.Context, issue *types.Issue, row csvtable.Row, out *rowOutcome) {
	for _, cc := range b.plan.customs {
		raw := row.Get(cc.column)
		if strings.TrimSpace(raw) == "" || !cc.field.AvailableTo(issue.ProjectID) {
			continue
		}
		values, err := b.customValues(ctx, cc.field, issue.ProjectID, raw)
		if err != nil {
			out.note("%s: %v", cc.field.Name, err)
			out.partial = true
			continue
		}
		issue.SetCustomValue(cc.field.ID, values)
	}
}

func (b *batch) customValues(ctx context.Context, cf *types.CustomField, projectID int64, raw string) ([]string, error) {
	if !cf.Format.IsReference() {
		return cf.ValueFromKeyword(raw)
	}
	tokens := []string{strings.TrimSpace(raw)}
	if cf.Multiple {
		tokens = types.SplitList(raw)
	}
	values := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		var (
			id  int64
			err error
		)
		if cf.Format == types.FormatVersion {
			id, err = b.resolver.Version(ctx, projectID, tok)
		} else {
			id, err = b.resolver.Actor(ctx, tok)
		}
		if err != nil {
			return nil, err
		}
		values = append(values, strconv.FormatInt(id, 10))
	}
	return values, nil
}

// applyWatchers adds each listed user as a watcher. Existing watchers and
// users who cannot watch the project are skipped; unknown users are noted
// and make the row partial once the whole list has been processed.
func (b *batch) applyWatchers(ctx context.Context, issue *types.Issue, row csvtable.Row, out *rowOutcome) {
	list := b.cell(row, FieldWatchers)
	if list == "" {
		return
	}
	for _, name := range types.SplitList(list) {
		id, err := b.resolver.Actor(ctx, name)
		if err != nil {
			out.note("watcher: %v", err)
			out.partial = true
			continue
		}
		if issue.IsWatchedBy(id) {
			continue
		}
		ok, err := b.store.CanWatch(ctx, issue.ProjectID, id)
		if err != nil {
			out.note("watcher %q: %v", name, err)
			out.partial = true
			continue
		}
		if !ok {
			continue
		}
		issue.WatcherIDs = append(issue.WatcherIDs, id)
	}
}

// logTime records spent time against a persisted issue.
func (b *batch) logTime(ctx context.Context, issue *types.Issue, row csvtable.Row, out *rowOutcome) {
	v := b.cell(row, FieldSpentTime)
	if v == "" || issue.ID == 0 {
		return
	}
	if !spentTimePattern.MatchString(v) {
		out.note("spent time %q is not a number", v)
		return
	}
	hours, err := strconv.ParseFloat(v, 64)
	if err != nil {
		out.note("spent time %q is not a number", v)
		return
	}

	activityID, err := b.resolver.Activity(ctx, b.cell(row, FieldActivity))
	if errors.Is(err, storage.ErrNotFound) && b.cell(row, FieldActivity) != "" {
		out.note("activity %q not found, using the default", b.cell(row, FieldActivity))
		activityID, err = b.resolver.Activity(ctx, "")
	}
	if err != nil {
		out.note("time entry: %v", err)
		out.partial = true
		return
	}

	userID := issue.AssigneeID
	if name := b.cell(row, FieldUserForSpentTime); name != "" {
		id, err := b.resolver.Actor(ctx, name)
		if err != nil {
			out.note("time entry user: %v", err)
		} else {
			userID = id
		}
	}
	if userID == 0 {
		userID = b.actor.ID
	}

	entry := &types.TimeEntry{
		ProjectID:  issue.ProjectID,
		IssueID:    issue.ID,
		UserID:     userID,
		ActivityID: activityID,
		Hours:      hours,
		SpentOn:    b.spentOn,
	}
	if err := b.store.CreateTimeEntry(ctx, entry, b.write); err != nil {
		out.note("time entry: %v", err)
		out.partial = true
	}
}

// linkRelations creates one relation per mapped relation column. An
// ambiguous target is fatal for the run; an existing relation of the same
// type to the same issue is left alone.
func (b *batch) linkRelations(ctx context.Context, issue *types.Issue, row csvtable.Row, out *rowOutcome) {
	if len(b.plan.relations) == 0 {
		return
	}
	existing, err := b.store.ListRelations(ctx, issue.ID)
	if err != nil {
		out.fail("relations: %v", err)
		return
	}
	for _, rc := range b.plan.relations {
		value := strings.TrimSpace(row.Get(rc.column))
		if value == "" {
			continue
		}
		target, err := b.locator.locate(ctx, value)
		switch {
		case err == nil:
		case errors.Is(err, ErrAmbiguous):
			out.fail("%s: %v", rc.typ, err)
			out.fatal = err
			return
		case errors.Is(err, ErrNoMatch) && b.opts.IgnoreNonExist:
			out.skip("%s target %q not found", rc.typ, value)
			return
		default:
			out.fail("%s: %v", rc.typ, err)
			return
		}

		if hasRelation(existing, issue.ID, target.ID, rc.typ) {
			continue
		}
		rel := &types.Relation{IssueFromID: issue.ID, IssueToID: target.ID, Type: rc.typ}
		if err := b.store.CreateRelation(ctx, rel); err != nil {
			out.fail("%s #%d: %v", rc.typ, target.ID, err)
			return
		}
		existing = append(existing, rel)
	}
}

func hasRelation(rels []*types.Relation, issueID, otherID int64, typ types.RelationType) bool {
	for _, r := range rels {
		if r.Other(issueID) == otherID && r.TypeFor(issueID) == typ {
			return true
		}
	}
	return false
}
