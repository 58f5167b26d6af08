package datastore

import (
	"sync"
)

// PlanStore is an interface that represents an immutable view over a set of
// PlanRecord records identified by PlanKey.
type PlanStore interface {
	Store[PlanKey, PlanRecord]
}

// MutablePlanStore is an interface that represents a mutable PlanStore of
// PlanRecord records identified by PlanKey.
type MutablePlanStore interface {
	MutableStore[PlanKey, PlanRecord]
}

// MemoryPlanStore is an in-memory implementation of the PlanStore and
// MutablePlanStore interfaces.
type MemoryPlanStore struct {
	mu      sync.RWMutex
	Records []PlanRecord `json:"records"`
}

// MemoryPlanStore implements PlanStore interface.
var _ PlanStore = &MemoryPlanStore{}

// MemoryPlanStore implements MutablePlanStore interface.
var _ MutablePlanStore = &MemoryPlanStore{}

// NewMemoryPlanStore creates a new MemoryPlanStore instance.
func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{Records: []PlanRecord{}}
}

// Get returns the PlanRecord for the provided key, or an error if no such
// record exists.
func (s *MemoryPlanStore) Get(key PlanKey) (PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return PlanRecord{}, ErrPlanNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all PlanRecord records in the store.
func (s *MemoryPlanStore) Fetch() ([]PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []PlanRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all PlanRecord records in the store that pass all
// of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryPlanStore) Filter(filters ...FilterFunc[PlanKey, PlanRecord]) []PlanRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]PlanRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryPlanStore) indexOf(key PlanKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryPlanStore) Add(record PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrPlanExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryPlanStore) Upsert(record PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		s.Records = append(s.Records, record)

		return nil
	}
	s.Records[idx] = record

	return nil
}

// Update edits an existing record whose key matches the supplied record. If
// no such record exists, an error is returned.
func (s *MemoryPlanStore) Update(record PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrPlanNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryPlanStore) Delete(key PlanKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrPlanNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
