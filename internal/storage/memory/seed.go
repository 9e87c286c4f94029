package memory

import (
	"context"

	"github.com/two-pack/redmine-importer/internal/types"
)

// CreateProject stores p, assigning an id when zero.
func (s *Store) CreateProject(ctx context.Context, p *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	} else if p.ID > s.nextID {
		s.nextID = p.ID
	}
	c := *p
	s.projects[p.ID] = &c
	return nil
}

// CreateUser stores u, assigning an id when zero.
func (s *Store) CreateUser(ctx context.Context, u *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

// AddMember makes userID a member of projectID.
func (s *Store) AddMember(ctx context.Context, projectID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[projectID] == nil {
		s.members[projectID] = make(map[int64]bool)
	}
	s.members[projectID][userID] = true
	return nil
}

// CreateStatus stores st.
func (s *Store) CreateStatus(ctx context.Context, st *types.IssueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.id()
	}
	c := *st
	s.statuses = append(s.statuses, &c)
	return nil
}

// CreateTracker stores t.
func (s *Store) CreateTracker(ctx context.Context, t *types.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.id()
	}
	c := *t
	s.trackers = append(s.trackers, &c)
	return nil
}

// CreateEnumeration stores e.
func (s *Store) CreateEnumeration(ctx context.Context, e *types.Enumeration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	c := *e
	s.enumerations = append(s.enumerations, &c)
	return nil
}

// CreateCustomField stores cf.
func (s *Store) CreateCustomField(ctx context.Context, cf *types.CustomField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cf.ID == 0 {
		cf.ID = s.id()
	}
	c := *cf
	s.customFields = append(s.customFields, &c)
	return nil
}
