package importer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// locator finds the single issue a unique value refers to. It backs update
// targeting, parent links and relation targets.
type locator struct {
	store    storage.Store
	key      uniqueKey
	cache    *uniqueCache
	openOnly bool
}

// locate returns the issue for value, ErrNoMatch, or ErrAmbiguous. Issues
// persisted earlier in the run are found through the cache without a query.
func (l *locator) locate(ctx context.Context, value string) (*types.Issue, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrNoMatch
	}
	if issue, ok := l.cache.get(value); ok {
		return issue, nil
	}

	if l.key.byID {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an issue id", ErrNoMatch, value)
		}
		issue, err := l.store.GetIssue(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: #%d", ErrNoMatch, id)
		}
		return issue, err
	}

	issues, err := l.store.FindIssues(ctx, storage.IssueFilter{
		Column:        l.key.column,
		CustomFieldID: l.key.customFieldID,
		Value:         value,
		OpenOnly:      l.openOnly,
		Limit:         2,
	})
	if err != nil {
		return nil, err
	}
	switch len(issues) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, value)
	case 1:
		return issues[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrAmbiguous, value)
	}
}

// remember records the issue persisted for value.
func (l *locator) remember(value string, issue *types.Issue) {
	if value = strings.TrimSpace(value); value != "" {
		l.cache.put(value, issue)
	}
}
