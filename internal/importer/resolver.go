package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/types"
)

// Resolver turns names found in cells into store identities. Every hit is
// cached for the rest of the run; enumerations are loaded once.
type Resolver struct {
	store         storage.Store
	cache         *referenceCache
	useAnonymous  bool
	addVersions   bool
	addCategories bool

	users      []*types.User
	statuses   []*types.IssueStatus
	trackers   []*types.Tracker
	priorities []*types.Enumeration
	activities []*types.Enumeration
	projects   map[int64]*types.Project
}

func newResolver(store storage.Store, opts Options) *Resolver {
	return &Resolver{
		store:         store,
		cache:         newReferenceCache(),
		useAnonymous:  opts.UseAnonymous,
		addVersions:   opts.AddVersions,
		addCategories: opts.AddCategories,
		projects:      make(map[int64]*types.Project),
	}
}

// Actor resolves a login, a "first last" pair, or a display name.
func (r *Resolver) Actor(ctx context.Context, name string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := r.cache.get(refUser, key); ok {
		return id, nil
	}

	u, err := r.store.FindUserByLogin(ctx, strings.TrimSpace(name))
	if err == nil {
		return r.cache.put(refUser, key, u.ID), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	if r.users == nil {
		if r.users, err = r.store.ListUsers(ctx); err != nil {
			return 0, err
		}
	}
	// Only the first two words are compared; "John Smith Jr" is John Smith.
	if words := strings.Fields(name); len(words) >= 2 {
		for _, u := range r.users {
			if strings.EqualFold(u.FirstName, words[0]) && strings.EqualFold(u.LastName, words[1]) {
				return r.cache.put(refUser, key, u.ID), nil
			}
		}
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Name(), strings.TrimSpace(name)) {
			return r.cache.put(refUser, key, u.ID), nil
		}
	}

	if r.useAnonymous {
		anon, err := r.store.AnonymousUser(ctx)
		if err != nil {
			return 0, err
		}
		return r.cache.put(refUser, key, anon.ID), nil
	}
	return 0, &NotFoundError{Kind: "user", Name: name}
}

func (r *Resolver) loadStatuses(ctx context.Context) error {
	if r.statuses != nil {
		return nil
	}
	var err error
	r.statuses, err = r.store.ListStatuses(ctx)
	return err
}

// Status matches a status by exact name.
func (r *Resolver) Status(ctx context.Context, name string) (*types.IssueStatus, error) {
	if err := r.loadStatuses(ctx); err != nil {
		return nil, err
	}
	if id, ok := r.cache.get(refStatus, name); ok {
		return r.statusByID(id), nil
	}
	for _, st := range r.statuses {
		if st.Name == name {
			r.cache.put(refStatus, name, st.ID)
			return st, nil
		}
	}
	return nil, &NotFoundError{Kind: "status", Name: name}
}

// DefaultStatus is the first status in workflow order.
func (r *Resolver) DefaultStatus(ctx context.Context) (*types.IssueStatus, error) {
	if err := r.loadStatuses(ctx); err != nil {
		return nil, err
	}
	if len(r.statuses) == 0 {
		return nil, &NotFoundError{Kind: "status", Name: "default"}
	}
	return r.statuses[0], nil
}

// IsClosed reports whether statusID is a closed status.
func (r *Resolver) IsClosed(ctx context.Context, statusID int64) (bool, error) {
	if err := r.loadStatuses(ctx); err != nil {
		return false, err
	}
	st := r.statusByID(statusID)
	return st != nil && st.IsClosed, nil
}

func (r *Resolver) statusByID(id int64) *types.IssueStatus {
	for _, st := range r.statuses {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// Tracker matches a tracker by exact name.
func (r *Resolver) Tracker(ctx context.Context, name string) (int64, error) {
	if id, ok := r.cache.get(refTracker, name); ok {
		return id, nil
	}
	if r.trackers == nil {
		var err error
		if r.trackers, err = r.store.ListTrackers(ctx); err != nil {
			return 0, err
		}
	}
	for _, t := range r.trackers {
		if t.Name == name {
			return r.cache.put(refTracker, name, t.ID), nil
		}
	}
	return 0, &NotFoundError{Kind: "tracker", Name: name}
}

func (r *Resolver) enumerations(ctx context.Context, kind types.EnumerationKind) ([]*types.Enumeration, error) {
	dst := &r.priorities
	if kind == types.EnumActivity {
		dst = &r.activities
	}
	if *dst == nil {
		entries, err := r.store.ListEnumerations(ctx, kind)
		if err != nil {
			return nil, err
		}
		*dst = entries
	}
	return *dst, nil
}

func (r *Resolver) enumeration(ctx context.Context, kind types.EnumerationKind, ref refKind, name string) (int64, error) {
	if id, ok := r.cache.get(ref, name); ok {
		return id, nil
	}
	entries, err := r.enumerations(ctx, kind)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return r.cache.put(ref, name, e.ID), nil
		}
	}
	return 0, &NotFoundError{Kind: string(ref), Name: name}
}

// Priority matches a priority by exact name.
func (r *Resolver) Priority(ctx context.Context, name string) (int64, error) {
	return r.enumeration(ctx, types.EnumPriority, refPriority, name)
}

// Activity matches a time tracking activity by exact name. A blank name
// resolves to the default activity.
func (r *Resolver) Activity(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return r.defaultEnumeration(ctx, types.EnumActivity, refActivity)
	}
	return r.enumeration(ctx, types.EnumActivity, refActivity, name)
}

// DefaultPriority returns the priority flagged as default.
func (r *Resolver) DefaultPriority(ctx context.Context) (int64, error) {
	return r.defaultEnumeration(ctx, types.EnumPriority, refPriority)
}

func (r *Resolver) defaultEnumeration(ctx context.Context, kind types.EnumerationKind, ref refKind) (int64, error) {
	entries, err := r.enumerations(ctx, kind)
	if err != nil {
		return 0, err
	}
	if e := storage.DefaultEnumeration(entries); e != nil {
		return e.ID, nil
	}
	return 0, &NotFoundError{Kind: string(ref), Name: "default"}
}

// Version finds a version shared with projectID, creating it when allowed.
func (r *Resolver) Version(ctx context.Context, projectID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", projectID, name)
	if id, ok := r.cache.get(refVersion, key); ok {
		return id, nil
	}
	v, err := r.store.FindSharedVersion(ctx, projectID, name)
	if err == nil {
		return r.cache.put(refVersion, key, v.ID), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if !r.addVersions || strings.TrimSpace(name) == "" {
		return 0, &NotFoundError{Kind: "version", Name: name}
	}
	v = &types.Version{ProjectID: projectID, Name: name, Status: "open", Sharing: types.SharingNone}
	if err := r.store.CreateVersion(ctx, v); err != nil {
		return 0, fmt.Errorf("create version %q: %w", name, err)
	}
	return r.cache.put(refVersion, key, v.ID), nil
}

// Category finds a category of projectID, creating it when allowed.
func (r *Resolver) Category(ctx context.Context, projectID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", projectID, name)
	if id, ok := r.cache.get(refCategory, key); ok {
		return id, nil
	}
	c, err := r.store.FindCategory(ctx, projectID, name)
	if err == nil {
		return r.cache.put(refCategory, key, c.ID), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}
	if !r.addCategories || strings.TrimSpace(name) == "" {
		return 0, &NotFoundError{Kind: "category", Name: name}
	}
	c = &types.Category{ProjectID: projectID, Name: name}
	if err := r.store.CreateCategory(ctx, c); err != nil {
		return 0, fmt.Errorf("create category %q: %w", name, err)
	}
	return r.cache.put(refCategory, key, c.ID), nil
}

// Project finds a project by name.
func (r *Resolver) Project(ctx context.Context, name string) (*types.Project, error) {
	if id, ok := r.cache.get(refProject, name); ok {
		return r.projects[id], nil
	}
	p, err := r.store.FindProjectByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Kind: "project", Name: name}
	}
	if err != nil {
		return nil, err
	}
	r.projects[r.cache.put(refProject, name, p.ID)] = p
	return p, nil
}
