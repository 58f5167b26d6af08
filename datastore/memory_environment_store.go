package datastore

import (
	"sync"
)

// EnvironmentStore is an interface that represents an immutable view over a
// set of EnvironmentRecord records identified by EnvironmentKey.
type EnvironmentStore interface {
	Store[EnvironmentKey, EnvironmentRecord]
}

// MutableEnvironmentStore is an interface that represents a mutable
// EnvironmentStore of EnvironmentRecord records identified by EnvironmentKey.
type MutableEnvironmentStore interface {
	MutableStore[EnvironmentKey, EnvironmentRecord]
}

// MemoryEnvironmentStore is an in-memory implementation of the
// EnvironmentStore and MutableEnvironmentStore interfaces.
type MemoryEnvironmentStore struct {
	mu      sync.RWMutex
	Records []EnvironmentRecord `json:"records"`
}

// MemoryEnvironmentStore implements EnvironmentStore interface.
var _ EnvironmentStore = &MemoryEnvironmentStore{}

// MemoryEnvironmentStore implements MutableEnvironmentStore interface.
var _ MutableEnvironmentStore = &MemoryEnvironmentStore{}

// NewMemoryEnvironmentStore creates a new MemoryEnvironmentStore instance.
func NewMemoryEnvironmentStore() *MemoryEnvironmentStore {
	return &MemoryEnvironmentStore{Records: []EnvironmentRecord{}}
}

// Get returns the EnvironmentRecord for the provided key, or an error if no
// such record exists.
func (s *MemoryEnvironmentStore) Get(key EnvironmentKey) (EnvironmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return EnvironmentRecord{}, ErrEnvironmentNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all EnvironmentRecord records in the store.
func (s *MemoryEnvironmentStore) Fetch() ([]EnvironmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []EnvironmentRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all EnvironmentRecord records in the store that
// pass all of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryEnvironmentStore) Filter(filters ...FilterFunc[EnvironmentKey, EnvironmentRecord]) []EnvironmentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]EnvironmentRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryEnvironmentStore) indexOf(key EnvironmentKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryEnvironmentStore) Add(record EnvironmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrEnvironmentExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryEnvironmentStore) Upsert(record EnvironmentRecord) error {
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
func (s *MemoryEnvironmentStore) Update(record EnvironmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrEnvironmentNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryEnvironmentStore) Delete(key EnvironmentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrEnvironmentNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
