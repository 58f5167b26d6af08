package datastore

import (
	"sync"
	"time"
)

// TransactionStore is an interface that represents an immutable view over a
// set of TransactionRecord records identified by TransactionKey.
type TransactionStore interface {
	Store[TransactionKey, TransactionRecord]
}

// MutableTransactionStore is an interface that represents a mutable
// TransactionStore of TransactionRecord records identified by TransactionKey.
type MutableTransactionStore interface {
	MutableStore[TransactionKey, TransactionRecord]

	// UpdateStatus moves the record's status forward, enforcing the
	// monotonic lifecycle.
	UpdateStatus(key TransactionKey, status TransactionStatus) error
}

// MemoryTransactionStore is an in-memory implementation of the
// TransactionStore and MutableTransactionStore interfaces.
type MemoryTransactionStore struct {
	mu      sync.RWMutex
	Records []TransactionRecord `json:"records"`
}

// MemoryTransactionStore implements TransactionStore interface.
var _ TransactionStore = &MemoryTransactionStore{}

// MemoryTransactionStore implements MutableTransactionStore interface.
var _ MutableTransactionStore = &MemoryTransactionStore{}

// NewMemoryTransactionStore creates a new MemoryTransactionStore instance.
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{Records: []TransactionRecord{}}
}

// Get returns the TransactionRecord for the provided key, or an error if no
// such record exists.
func (s *MemoryTransactionStore) Get(key TransactionKey) (TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return TransactionRecord{}, ErrTransactionNotFound
	}

	return s.Records[idx].Clone(), nil
}

// Fetch returns a copy of all TransactionRecord records in the store.
func (s *MemoryTransactionStore) Fetch() ([]TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []TransactionRecord{}
	for _, record := range s.Records {
		records = append(records, record.Clone())
	}

	return records, nil
}

// Filter returns a copy of all TransactionRecord records in the store that
// pass all of the provided filters. Filters are applied in the order they are
// provided. If no filters are provided, all records are returned.
func (s *MemoryTransactionStore) Filter(filters ...FilterFunc[TransactionKey, TransactionRecord]) []TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := append([]TransactionRecord{}, s.Records...)
	for _, filter := range filters {
		records = filter(records)
	}

	return records
}

// indexOf returns the index of the record with the provided key, or -1 if no
// such record exists.
func (s *MemoryTransactionStore) indexOf(key TransactionKey) int {
	for i, record := range s.Records {
		if record.Key().Equals(key) {
			return i
		}
	}

	return -1
}

// Add inserts a new record into the store.
// If a record with the same key already exists, an error is returned.
func (s *MemoryTransactionStore) Add(record TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx != -1 {
		return ErrTransactionExists
	}
	s.Records = append(s.Records, record)

	return nil
}

// Upsert inserts a new record into the store if no record with the same key
// already exists. If a record with the same key already exists, it is updated.
func (s *MemoryTransactionStore) Upsert(record TransactionRecord) error {
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
func (s *MemoryTransactionStore) Update(record TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(record.Key())
	if idx == -1 {
		return ErrTransactionNotFound
	}
	s.Records[idx] = record

	return nil
}

// Delete deletes the record whose key matches the supplied key. If no such
// record exists, an error is returned.
func (s *MemoryTransactionStore) Delete(key TransactionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrTransactionNotFound
	}
	s.Records = append(s.Records[:idx], s.Records[idx+1:]...)

	return nil
}

// UpdateStatus moves the record's status forward, enforcing the monotonic
// lifecycle: an update that would move backward or leave a terminal status
// returns ErrInvalidStatusTransition.
func (s *MemoryTransactionStore) UpdateStatus(key TransactionKey, status TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(key)
	if idx == -1 {
		return ErrTransactionNotFound
	}
	if !s.Records[idx].Status.CanTransition(status) {
		return ErrInvalidStatusTransition
	}
	s.Records[idx].Status = status
	s.Records[idx].UpdatedAt = time.Now().UTC()

	return nil
}
