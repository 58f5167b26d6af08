package datastore

import (
	"sync"
)

// StepStore is an interface that represents an immutable view over a set of
// StepRecord records identified by StepKey.
type StepStore interface {
	Store[StepKey, StepRecord]
}

// MutableStepStore is an interface that represents a mutable StepStore of
// StepRecord records identified by StepKey.
type MutableStepStore interface {
	MutableStore[StepKey, StepRecord]
}

// MemoryStepStore is an in-memory implementation of the StepStore and
// MutableStepStore interfaces.
type MemoryStepStore struct {
	mu      sync.RWMutex
	Records []StepRecord `json:"records"`
}

// MemoryStepStore implements StepStore interface.
var _ StepStore = &MemoryStepStore{}

// MemoryStepStore implements MutableStepStore interface.
var _ MutableStepStore = &MemoryStepStore{}

// NewMemoryStepStore creates a new MemoryStepStore instance.
func NewMemoryStepStore() *MemoryStepStore {
	return &MemoryStepStore{Records: []StepRecord{}}
}

// Get returns the StepRecord for the provided key, or an error if no such
// record exists.
func (s *MemoryStepStore) Get(key StepKey) (StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return StepRecord{}, ErrStepNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all StepRecord records in the store.
func (s *MemoryStepStore) Fetch() ([]StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []StepRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all StepRecord records in the store that pass all
// of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryStepStore) Filter(filters ...FilterFunc[StepKey, StepRecord]) []StepRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]StepRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryStepStore) indexOf(key StepKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryStepStore) Add(record StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrStepExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryStepStore) Upsert(record StepRecord) error {
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
func (s *MemoryStepStore) Update(record StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrStepNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryStepStore) Delete(key StepKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrStepNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}
