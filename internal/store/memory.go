package store

import (
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/Cockpit/internal/models"
)

// InMemoryStore keeps run records for the life of the process.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.RunRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddRunRecord(r models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *InMemoryStore) ListRunRecords(limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	out := append([]models.RunRecord(nil), s.records...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *InMemoryStore) FocusTotals(since time.Time) (models.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := models.Totals{Since: since}
	for _, r := range s.records {
		if !r.EndedAt.Before(since) {
			totals.Add(r)
		}
	}
	return totals, nil
}

func (s *InMemoryStore) Close() error { return nil }
