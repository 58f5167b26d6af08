package statestore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/diff"
)

// MemoryStore is an in-memory implementation of the Store and MutableStore
// interfaces. Reads are safe at any slot while writes hold an exclusive
// per-account lock for the duration of one apply call.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[account.Key]*accountState

	// retention caps the number of history entries kept per account.
	// Zero means unbounded.
	retention int
	schemaFor diff.SchemaProvider
	journal   Journal
}

// Journal receives every account mutation for durable persistence. Writes
// land in the journal before the in-memory state so a failed journal write
// leaves the store unchanged.
type Journal interface {
	SaveAccountState(entry HistoryEntry) error
	SetAccountFrozen(key account.Key, frozen bool) error
}

// MemoryStore implements Store interface.
var _ Store = &MemoryStore{}

// MemoryStore implements MutableStore interface.
var _ MutableStore = &MemoryStore{}

// accountState holds one account's history behind its own lock, giving the
// store its single-writer-per-account discipline.
type accountState struct {
	mu      sync.RWMutex
	entries []HistoryEntry // append order; slots strictly increase except across rewinds
	frozen  bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithRetention bounds the history kept per account to the last n entries.
// Older entries are pruned automatically as new ones are applied.
func WithRetention(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.retention = n
	}
}

// WithSchemaProvider supplies the optional per-account data schema used to
// compute field-level change sets. Without one, account data is diffed as an
// opaque blob.
func WithSchemaProvider(p diff.SchemaProvider) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.schemaFor = p
	}
}

// WithJournal mirrors every mutation into a durable journal.
func WithJournal(j Journal) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.journal = j
	}
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		accounts: map[account.Key]*accountState{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Read returns the latest snapshot at or before atSlot, or the current
// snapshot when atSlot is nil. Rewinds are destructive: when the history
// contains a rewind, the post-rewind entry shadows earlier forward entries.
func (s *MemoryStore) Read(key account.Key, atSlot *uint64) (account.Snapshot, error) {
	state, ok := s.stateFor(key)
	if !ok {
		return account.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	for i := len(state.entries) - 1; i >= 0; i-- {
		entry := state.entries[i]
		if atSlot != nil && entry.Slot > *atSlot {
			continue
		}
		if entry.Snapshot == nil {
			// The most recent observation at or before atSlot is that the
			// account does not exist.
			break
		}

		return entry.Snapshot.Clone(), nil
	}

	return account.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// History returns the account's history entries inside r, oldest first.
func (s *MemoryStore) History(key account.Key, r Range) ([]HistoryEntry, error) {
	state, ok := s.stateFor(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	entries := make([]HistoryEntry, 0, len(state.entries))
	for _, entry := range state.entries {
		if !r.contains(entry.Slot) {
			continue
		}
		entries = append(entries, cloneEntry(entry))
		if r.Limit > 0 && len(entries) == r.Limit {
			break
		}
	}

	return entries, nil
}

// Contains reports whether the store holds any state for the account.
func (s *MemoryStore) Contains(key account.Key) bool {
	_, ok := s.stateFor(key)

	return ok
}

// Keys returns every account key known for a project and environment, ordered
// by address.
func (s *MemoryStore) Keys(project, environment string) []account.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]account.Key, 0, len(s.accounts))
	for key := range s.accounts {
		if key.Project == project && key.Environment == environment {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Address.String() < keys[j].Address.String()
	})

	return keys
}

// Apply appends a transaction-caused history entry.
func (s *MemoryStore) Apply(
	key account.Key, snap account.Snapshot, slot uint64, causingTx *solana.Signature,
) (string, error) {
	return s.append(key, &snap, slot, causingTx, OperationTransaction)
}

// ApplyOverride appends a synthetic entry with no causing transaction.
func (s *MemoryStore) ApplyOverride(key account.Key, snap account.Snapshot, slot uint64) (string, error) {
	return s.append(key, &snap, slot, nil, OperationOverride)
}

// ApplyRewind appends a rewind-tagged entry, moving the account's slot
// pointer backward. A nil snapshot records that the account does not exist
// post-rewind.
func (s *MemoryStore) ApplyRewind(key account.Key, snap *account.Snapshot, slot uint64) (string, error) {
	return s.append(key, snap, slot, nil, OperationRewind)
}

// Freeze marks the account as accepting no further mutation.
func (s *MemoryStore) Freeze(key account.Key) error {
	state, ok := s.stateFor(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if s.journal != nil {
		if err := s.journal.SetAccountFrozen(key, true); err != nil {
			return fmt.Errorf("journaling freeze: %w", err)
		}
	}
	state.frozen = true

	return nil
}

// Prune deletes the oldest history entries beyond keepLastN. The entry
// backing the current snapshot is always retained.
func (s *MemoryStore) Prune(key account.Key, keepLastN int) (int, error) {
	state, ok := s.stateFor(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if keepLastN < 1 {
		keepLastN = 1
	}
	removed := len(state.entries) - keepLastN
	if removed <= 0 {
		return 0, nil
	}
	state.entries = append([]HistoryEntry{}, state.entries[removed:]...)

	return removed, nil
}

// append is the single mutation path. It validates slot ordering, computes
// the change set against the previous entry and enforces retention.
func (s *MemoryStore) append(
	key account.Key, snap *account.Snapshot, slot uint64, causingTx *solana.Signature, op OperationType,
) (string, error) {
	state := s.stateForCreate(key)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.frozen {
		return "", fmt.Errorf("%w: %s", ErrAccountFrozen, key)
	}

	var prev *account.Snapshot
	if n := len(state.entries); n > 0 {
		last := state.entries[n-1]
		prev = last.Snapshot

		if op != OperationRewind {
			if slot == last.Slot {
				return "", &StateConflictError{
					Key:      key,
					Slot:     slot,
					Existing: snapshotOrZero(last.Snapshot),
					Incoming: snapshotOrZero(snap),
				}
			}
			if slot < last.Slot {
				return "", fmt.Errorf("%w: %s has slot %d, got %d", ErrOutOfOrderSlot, key, last.Slot, slot)
			}
		}
	}

	var schema diff.Schema
	if s.schemaFor != nil {
		schema = s.schemaFor(key.Address)
	}

	entry := HistoryEntry{
		ID:          newEntryID(),
		Key:         key,
		Slot:        slot,
		Change:      diff.Diff(prev, snap, schema),
		TxSignature: causingTx,
		Operation:   op,
		RecordedAt:  time.Now().UTC(),
	}
	if snap != nil {
		stored := snap.Clone()
		stored.Slot = slot
		entry.Snapshot = &stored
	}

	if s.journal != nil {
		if err := s.journal.SaveAccountState(entry); err != nil {
			return "", fmt.Errorf("journaling %s entry: %w", op, err)
		}
	}

	state.entries = append(state.entries, entry)
	if s.retention > 0 && len(state.entries) > s.retention {
		state.entries = append([]HistoryEntry{}, state.entries[len(state.entries)-s.retention:]...)
	}

	return entry.ID, nil
}

// stateFor returns the existing state for a key.
func (s *MemoryStore) stateFor(key account.Key) (*accountState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.accounts[key]

	return state, ok
}

// stateForCreate returns the state for a key, creating it when absent.
func (s *MemoryStore) stateForCreate(key account.Key) *accountState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.accounts[key]
	if !ok {
		state = &accountState{}
		s.accounts[key] = state
	}

	return state
}

func cloneEntry(entry HistoryEntry) HistoryEntry {
	out := entry
	if entry.Snapshot != nil {
		snap := entry.Snapshot.Clone()
		out.Snapshot = &snap
	}
	if entry.Change != nil {
		change := make(diff.ChangeSet, len(entry.Change))
		for name, fc := range entry.Change {
			change[name] = fc
		}
		out.Change = change
	}

	return out
}

func snapshotOrZero(snap *account.Snapshot) account.Snapshot {
	if snap == nil {
		return account.Snapshot{}
	}

	return *snap
}
