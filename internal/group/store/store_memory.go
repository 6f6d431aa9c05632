package store

import (
	"context"
	"sort"
	"sync"

	"canvass/internal/group/models"
	id "canvass/pkg/domain"
	"canvass/pkg/platform/sentinel"
)

type membershipKey struct {
	groupID  id.GroupID
	memberID id.MemberID
}

// InMemoryStore keeps groups in process memory for unit tests and the
// default development wiring.
type InMemoryStore struct {
	mu          sync.RWMutex
	groups      map[id.GroupID]models.Group
	memberships map[membershipKey]models.Membership
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		groups:      make(map[id.GroupID]models.Group),
		memberships: make(map[membershipKey]models.Membership),
	}
}

func (s *InMemoryStore) CreateWithFounder(_ context.Context, group models.Group, founder models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; ok {
		return sentinel.ErrConflict
	}
	s.groups[group.ID] = group
	s.memberships[membershipKey{group.ID, founder.MemberID}] = founder
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, groupID id.GroupID) (models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if group, ok := s.groups[groupID]; ok {
		return group, nil
	}
	return models.Group{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) AddMember(_ context.Context, membership models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey{membership.GroupID, membership.MemberID}
	if _, ok := s.memberships[key]; ok {
		return sentinel.ErrConflict
	}
	s.memberships[key] = membership
	return nil
}

func (s *InMemoryStore) FindMembership(_ context.Context, groupID id.GroupID, memberID id.MemberID) (models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.memberships[membershipKey{groupID, memberID}]; ok {
		return m, nil
	}
	return models.Membership{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListMembers(_ context.Context, groupID id.GroupID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for key, m := range s.memberships {
		if key.groupID == groupID {
			out = append(out, m)
		}
	}
	sortByJoinedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListByMember(_ context.Context, memberID id.MemberID) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for key, m := range s.memberships {
		if key.memberID == memberID {
			out = append(out, m)
		}
	}
	sortByJoinedAt(out)
	return out, nil
}

func (s *InMemoryStore) CountMembers(_ context.Context, groupID id.GroupID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.memberships {
		if key.groupID == groupID {
			count++
		}
	}
	return count, nil
}

func sortByJoinedAt(list []models.Membership) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
}
