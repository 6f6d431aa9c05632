package store

import (
	"context"
	"sort"
	"sync"

	"canvass/internal/submission/models"
)

// InMemoryStore keeps submissions in process memory for unit tests and the
// default development wiring.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions []models.Submission
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Create(_ context.Context, submission models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, submission)
	return nil
}

func (s *InMemoryStore) AnonymousSummary(_ context.Context) ([]models.SummaryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ name, email string }
	grouped := make(map[key]*models.SummaryRow)
	var order []key
	for _, sub := range s.submissions {
		if !sub.IsAnonymous() {
			continue
		}
		k := key{sub.Name, sub.Email}
		row, ok := grouped[k]
		if !ok {
			row = &models.SummaryRow{Name: sub.Name, Email: sub.Email}
			grouped[k] = row
			order = append(order, k)
		}
		row.Count++
		if sub.CreatedAt.After(row.LastSubmittedAt) {
			row.LastSubmittedAt = sub.CreatedAt
		}
	}

	rows := make([]models.SummaryRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, *grouped[k])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LastSubmittedAt.After(rows[j].LastSubmittedAt)
	})
	return rows, nil
}
