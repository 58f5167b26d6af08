package datastore

import (
	"sync"
)

// ProjectStore is an interface that represents an immutable view over a set
// of ProjectRecord records identified by ProjectKey.
type ProjectStore interface {
	Store[ProjectKey, ProjectRecord]
}

// MutableProjectStore is an interface that represents a mutable ProjectStore
// of ProjectRecord records identified by ProjectKey.
type MutableProjectStore interface {
	MutableStore[ProjectKey, ProjectRecord]
}

// MemoryProjectStore is an in-memory implementation of the ProjectStore and
// MutableProjectStore interfaces.
type MemoryProjectStore struct {
	mu      sync.RWMutex
	Records []ProjectRecord `json:"records"`
}

// MemoryProjectStore implements ProjectStore interface.
var _ ProjectStore = &MemoryProjectStore{}

// MemoryProjectStore implements MutableProjectStore interface.
var _ MutableProjectStore = &MemoryProjectStore{}

// NewMemoryProjectStore creates a new MemoryProjectStore instance.
func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{Records: []ProjectRecord{}}
}

// Get returns the ProjectRecord for the provided key, or an error if no such
// record exists.
func (s *MemoryProjectStore) Get(key ProjectKey) (ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ProjectRecord{}, ErrProjectNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all ProjectRecord records in the store.
func (s *MemoryProjectStore) Fetch() ([]ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []ProjectRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all ProjectRecord records in the store that pass
// all of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryProjectStore) Filter(filters ...FilterFunc[ProjectKey, ProjectRecord]) []ProjectRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]ProjectRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryProjectStore) indexOf(key ProjectKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryProjectStore) Add(record ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrProjectExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryProjectStore) Upsert(record ProjectRecord) error {
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
func (s *MemoryProjectStore) Update(record ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrProjectNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryProjectStore) Delete(key ProjectKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrProjectNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
