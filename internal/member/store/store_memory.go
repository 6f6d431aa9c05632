package store

import (
	"context"
	"sync"

	"canvass/internal/member/models"
	id "canvass/pkg/domain"
	"canvass/pkg/platform/sentinel"
)

// InMemoryStore keeps members in process memory. It backs unit tests and the
// default development wiring, and intentionally favors clarity over
// performance.
type InMemoryStore struct {
	mu         sync.RWMutex
	members    map[id.MemberID]models.Member
	byExternal map[string]id.MemberID
	byCode     map[string]id.MemberID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		members:    make(map[id.MemberID]models.Member),
		byExternal: make(map[string]id.MemberID),
		byCode:     make(map[string]id.MemberID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, member models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byExternal[member.ExternalID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byCode[member.InviteCode]; ok {
		return sentinel.ErrConflict
	}
	s.members[member.ID] = member
	s.byExternal[member.ExternalID] = member.ID
	s.byCode[member.InviteCode] = member.ID
	return nil
}

func (s *InMemoryStore) UpdateProfile(_ context.Context, memberID id.MemberID, email, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[memberID]
	if !ok {
		return sentinel.ErrNotFound
	}
	member.Email = email
	member.DisplayName = displayName
	s.members[memberID] = member
	return nil
}

func (s *InMemoryStore) FindByExternalID(_ context.Context, externalID string) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if memberID, ok := s.byExternal[externalID]; ok {
		return s.members[memberID], nil
	}
	return models.Member{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByID(_ context.Context, memberID id.MemberID) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if member, ok := s.members[memberID]; ok {
		return member, nil
	}
	return models.Member{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByInviteCode(_ context.Context, code string) (models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if memberID, ok := s.byCode[code]; ok {
		return s.members[memberID], nil
	}
	return models.Member{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) InviteCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *InMemoryStore) CountRecruits(_ context.Context, memberID id.MemberID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.members {
		if m.InvitedBy != nil && *m.InvitedBy == memberID {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	return out, nil
}
