package importer

import "github.com/two-pack/redmine-importer/internal/types"

type refKind string

const (
	refUser     refKind = "user"
	refProject  refKind = "project"
	refStatus   refKind = "status"
	refTracker  refKind = "tracker"
	refPriority refKind = "priority"
	refActivity refKind = "activity"
	refVersion  refKind = "version"
	refCategory refKind = "category"
)

type refKey struct {
	kind refKind
	name string
}

// referenceCache memoizes resolved references for one run. Entries are
// written once and never invalidated.
type referenceCache struct {
	ids map[refKey]int64
}

func newReferenceCache() *referenceCache {
	return &referenceCache{ids: make(map[refKey]int64)}
}

func (c *referenceCache) get(kind refKind, name string) (int64, bool) {
	id, ok := c.ids[refKey{kind, name}]
	return id, ok
}

// put stores id unless name is already cached, and returns the cached id.
func (c *referenceCache) put(kind refKind, name string, id int64) int64 {
	k := refKey{kind, name}
	if prev, ok := c.ids[k]; ok {
		return prev
	}
	c.ids[k] = id
	return id
}

// uniqueCache maps unique values seen in this run to a snapshot of the issue
// persisted for them, so later rows can target issues created earlier in the
// same run without asking the store again.
type uniqueCache struct {
	issues map[string]*types.Issue
}

func newUniqueCache() *uniqueCache {
	return &uniqueCache{issues: make(map[string]*types.Issue)}
}

// get returns a copy of the cached issue.
func (c *uniqueCache) get(value string) (*types.Issue, bool) {
	issue, ok := c.issues[value]
	if !ok {
		return nil, false
	}
	return issue.Clone(), true
}

// put caches a copy of issue. A value keeps the first issue it was bound to;
// later saves of that same issue refresh the snapshot.
func (c *uniqueCache) put(value string, issue *types.Issue) {
	if prev, ok := c.issues[value]; ok && prev.ID != issue.ID {
		return
	}
	c.issues[value] = issue.Clone()
}
