// Package sim provides an in-process simulated ledger for local and fork
// environments. It implements every optional capability of the ledger client
// interface: slot advancement, destructive rewind via an undo journal, and
// direct account injection. Transactions are limited to system-program
// lamport transfers, which is enough to exercise the full engine.
package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/ledger"
)

// transferIndex is the system program's transfer instruction variant.
const transferIndex = 2

// simAccount is the ledger-side state of one account.
type simAccount struct {
	lamports    uint64
	owner       solana.PublicKey
	data        []byte
	slotUpdated uint64
}

func (a *simAccount) clone() *simAccount {
	if a == nil {
		return nil
	}
	out := *a
	if a.data != nil {
		out.data = append([]byte(nil), a.data...)
	}

	return &out
}

// undo records the previous state of one account so a rewind can restore it.
// A nil prev means the account did not exist before the mutation.
type undo struct {
	slot uint64
	addr solana.PublicKey
	prev *simAccount
}

// TxRecord is the sim's record of one processed transaction.
type TxRecord struct {
	Signature solana.Signature
	Slot      uint64
}

// Ledger is a simulated in-process ledger.
type Ledger struct {
	mu       sync.Mutex
	slot     uint64
	accounts map[solana.PublicKey]*simAccount
	journal  []undo
	txs      []TxRecord
	sigSeq   uint64

	failSubmit error
}

// Ledger implements the full capability surface.
var (
	_ ledger.Client        = &Ledger{}
	_ ledger.SlotAdvancer  = &Ledger{}
	_ ledger.Rewinder      = &Ledger{}
	_ ledger.AccountSetter = &Ledger{}
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithInitialSlot starts the ledger at the given slot, e.g. the fork origin
// slot of a fork environment.
func WithInitialSlot(slot uint64) Option {
	return func(l *Ledger) {
		l.slot = slot
	}
}

// WithAccount seeds the ledger with a pre-existing account.
func WithAccount(address solana.PublicKey, lamports uint64, owner solana.PublicKey, data []byte) Option {
	return func(l *Ledger) {
		l.accounts[address] = &simAccount{
			lamports:    lamports,
			owner:       owner,
			data:        append([]byte(nil), data...),
			slotUpdated: l.slot,
		}
	}
}

// New creates a simulated ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: map[solana.PublicKey]*simAccount{},
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// FailNextSubmit makes the next Submit call fail with err, once.
func (l *Ledger) FailNextSubmit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failSubmit = err
}

// Submit processes a transaction in one new slot. The whole transaction is
// validated before any state is touched, so a rejection leaves the ledger
// unchanged.
func (l *Ledger) Submit(ctx context.Context, req *ledger.TransactionRequest) (solana.Signature, uint64, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failSubmit != nil {
		err := l.failSubmit
		l.failSubmit = nil

		return solana.Signature{}, 0, err
	}
	if req == nil || len(req.Instructions) == 0 {
		return solana.Signature{}, 0, &ledger.TransactionRejectedError{Reason: "empty transaction"}
	}

	transfers, err := l.decodeTransfers(req.Instructions)
	if err != nil {
		return solana.Signature{}, 0, err
	}

	slot := l.slot + 1
	l.slot = slot
	for _, t := range transfers {
		l.mutate(t.from, slot, func(a *simAccount) {
			a.lamports -= t.lamports
		})
		l.mutate(t.to, slot, func(a *simAccount) {
			a.lamports += t.lamports
			if a.owner.IsZero() {
				a.owner = solana.SystemProgramID
			}
		})
	}

	sig := l.nextSignature()
	l.txs = append(l.txs, TxRecord{Signature: sig, Slot: slot})

	return sig, slot, nil
}

type transfer struct {
	from, to solana.PublicKey
	lamports uint64
}

// decodeTransfers validates and decodes every instruction up front.
func (l *Ledger) decodeTransfers(instructions []solana.Instruction) ([]transfer, error) {
	transfers := make([]transfer, 0, len(instructions))
	// Track running balances across instructions so multi-instruction
	// transactions are validated against their combined effect. Unsigned
	// arithmetic throughout: balances above MaxInt64 are legal.
	available := map[solana.PublicKey]uint64{}
	seen := map[solana.PublicKey]bool{}
	balanceOf := func(address solana.PublicKey) uint64 {
		if !seen[address] {
			seen[address] = true
			if existing, ok := l.accounts[address]; ok {
				available[address] = existing.lamports
			}
		}

		return available[address]
	}

	for _, inst := range instructions {
		if !inst.ProgramID().Equals(solana.SystemProgramID) {
			return nil, &ledger.TransactionRejectedError{
				Reason: fmt.Sprintf("unknown program %s", inst.ProgramID()),
			}
		}
		data, err := inst.Data()
		if err != nil {
			return nil, &ledger.TransactionRejectedError{Reason: fmt.Sprintf("unreadable instruction data: %v", err)}
		}
		if len(data) < 12 || binary.LittleEndian.Uint32(data[:4]) != transferIndex {
			return nil, &ledger.TransactionRejectedError{Reason: "unsupported system instruction"}
		}
		accounts := inst.Accounts()
		if len(accounts) < 2 {
			return nil, &ledger.TransactionRejectedError{Reason: "transfer requires a source and a destination"}
		}

		t := transfer{
			from:     accounts[0].PublicKey,
			to:       accounts[1].PublicKey,
			lamports: binary.LittleEndian.Uint64(data[4:12]),
		}

		balance := balanceOf(t.from)
		if balance < t.lamports {
			return nil, &ledger.TransactionRejectedError{
				Reason: fmt.Sprintf("insufficient funds: %s has %d lamports, needs %d", t.from, balance, t.lamports),
			}
		}
		available[t.from] = balance - t.lamports

		destination := balanceOf(t.to)
		if destination+t.lamports < destination {
			return nil, &ledger.TransactionRejectedError{
				Reason: fmt.Sprintf("lamports overflow: %s cannot receive %d", t.to, t.lamports),
			}
		}
		available[t.to] = destination + t.lamports

		transfers = append(transfers, t)
	}

	return transfers, nil
}

// GetAccount returns the account's current state.
func (l *Ledger) GetAccount(ctx context.Context, address solana.PublicKey) (account.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return account.Snapshot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[address]
	if !ok {
		return account.Snapshot{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, address)
	}

	return account.Snapshot{
		Address:  address,
		Lamports: acct.lamports,
		Owner:    acct.owner,
		Data:     append([]byte(nil), acct.data...),
		Slot:     acct.slotUpdated,
	}, nil
}

// CurrentSlot returns the ledger's current slot.
func (l *Ledger) CurrentSlot(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.slot, nil
}

// AdvanceSlots advances slot production by n without processing anything.
func (l *Ledger) AdvanceSlots(ctx context.Context, n uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot += n

	return l.slot, nil
}

// RewindToSlot destructively restores ledger state to the target slot by
// replaying the undo journal backward.
func (l *Ledger) RewindToSlot(ctx context.Context, slot uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cut := len(l.journal)
	for cut > 0 && l.journal[cut-1].slot > slot {
		cut--
	}
	for i := len(l.journal) - 1; i >= cut; i-- {
		rec := l.journal[i]
		if rec.prev == nil {
			delete(l.accounts, rec.addr)

			continue
		}
		l.accounts[rec.addr] = rec.prev.clone()
	}
	l.journal = l.journal[:cut]

	kept := l.txs[:0]
	for _, tx := range l.txs {
		if tx.Slot <= slot {
			kept = append(kept, tx)
		}
	}
	l.txs = kept
	l.slot = slot

	return nil
}

// SetAccount injects account state directly at the current slot.
func (l *Ledger) SetAccount(ctx context.Context, address solana.PublicKey, snap account.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.mutate(address, l.slot, func(a *simAccount) {
		a.lamports = snap.Lamports
		a.owner = snap.Owner
		a.data = append([]byte(nil), snap.Data...)
	})

	return nil
}

// Transactions returns the processed transaction records, oldest first.
func (l *Ledger) Transactions() []TxRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]TxRecord(nil), l.txs...)
}

// mutate journals the account's previous state and applies fn at slot.
func (l *Ledger) mutate(address solana.PublicKey, slot uint64, fn func(*simAccount)) {
	existing := l.accounts[address]
	l.journal = append(l.journal, undo{slot: slot, addr: address, prev: existing.clone()})

	acct := existing
	if acct == nil {
		acct = &simAccount{}
		l.accounts[address] = acct
	}
	fn(acct)
	acct.slotUpdated = slot
}

// nextSignature generates a deterministic, unique signature.
func (l *Ledger) nextSignature() solana.Signature {
	l.sigSeq++
	var sig solana.Signature
	binary.BigEndian.PutUint64(sig[:8], l.sigSeq)

	return sig
}
