// Package memory provides an in-process UserStore, used by tests and the
// "memory" store driver. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/dkeye/Nearby/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	records []domain.UserRecord
	saves   int
}

func NewStore(seed ...domain.UserRecord) *Store {
	return &Store{records: domain.CloneRecords(seed)}
}

func (s *Store) Load(ctx context.Context) ([]domain.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneRecords(s.records), nil
}

func (s *Store) Save(ctx context.Context, records []domain.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = domain.CloneRecords(records)
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) Close() error { return nil }
