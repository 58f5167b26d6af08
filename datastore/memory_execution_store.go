package datastore

import (
	"sync"
)

// ExecutionStore is an interface that represents an immutable view over a set
// of ExecutionRecord records identified by ExecutionKey.
type ExecutionStore interface {
	Store[ExecutionKey, ExecutionRecord]
}

// MutableExecutionStore is an interface that represents a mutable
// ExecutionStore of ExecutionRecord records identified by ExecutionKey.
type MutableExecutionStore interface {
	MutableStore[ExecutionKey, ExecutionRecord]
}

// MemoryExecutionStore is an in-memory implementation of the ExecutionStore
// and MutableExecutionStore interfaces.
type MemoryExecutionStore struct {
	mu      sync.RWMutex
	Records []ExecutionRecord `json:"records"`
}

// MemoryExecutionStore implements ExecutionStore interface.
var _ ExecutionStore = &MemoryExecutionStore{}

// MemoryExecutionStore implements MutableExecutionStore interface.
var _ MutableExecutionStore = &MemoryExecutionStore{}

// NewMemoryExecutionStore creates a new MemoryExecutionStore instance.
func NewMemoryExecutionStore() *MemoryExecutionStore {
	return &MemoryExecutionStore{Records: []ExecutionRecord{}}
}

// Get returns the ExecutionRecord for the provided key, or an error if no
// such record exists.
func (s *MemoryExecutionStore) Get(key ExecutionKey) (ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ExecutionRecord{}, ErrExecutionNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all ExecutionRecord records in the store.
func (s *MemoryExecutionStore) Fetch() ([]ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []ExecutionRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all ExecutionRecord records in the store that pass
// all of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryExecutionStore) Filter(filters ...FilterFunc[ExecutionKey, ExecutionRecord]) []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]ExecutionRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryExecutionStore) indexOf(key ExecutionKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryExecutionStore) Add(record ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrExecutionExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryExecutionStore) Upsert(record ExecutionRecord) error {
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
func (s *MemoryExecutionStore) Update(record ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrExecutionNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryExecutionStore) Delete(key ExecutionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrExecutionNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
