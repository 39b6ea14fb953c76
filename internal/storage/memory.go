package storage

import (
	"context"
	"fmt"
	"sync"

	"plantwatch/internal/models"
)

// MemoryStore keeps readings in process memory. Used for tests and for
// running without a database file.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	readings    map[string][]models.Reading
	maintenance map[string]float64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		readings:    make(map[string][]models.Reading),
		maintenance: make(map[string]float64),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, r *models.Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	s.readings[r.Machine] = append(s.readings[r.Machine], *r)
	return nil
}

func (s *MemoryStore) Readings(ctx context.Context, machine string) ([]models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.readings[machine]
	out := make([]models.Reading, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemoryStore) Latest(ctx context.Context, machine string) (*models.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.readings[machine]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoReadings, machine)
	}
	r := rows[len(rows)-1]
	return &r, nil
}

func (s *MemoryStore) Clear(ctx context.Context, machine string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.readings, machine)
	return nil
}

func (s *MemoryStore) RecordMaintenance(ctx context.Context, machine string, runtime float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenance[machine] = runtime
	return nil
}

func (s *MemoryStore) LastMaintenance(ctx context.Context, machine string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maintenance[machine], nil
}

func (s *MemoryStore) Close() error { return nil }
