// Package testutil provides an in-memory record store for tests.
//
// MemoryStore enforces the same contract as the postgres repositories:
// primary/unique key rejection with domain.ErrDuplicateKey, a wallet foreign
// key on profiles, and "not found" kept distinct from lookup failures.
package testutil

import (
	"context"
	"qittMarket/domain"
	"sync"
	"time"
)

// Fault makes a store operation fail. Times limits how many calls fail;
// zero means every call fails.
type Fault struct {
	Err   error
	Times int
}

type MemoryStore struct {
	mu           sync.Mutex
	profiles     map[string]domain.Profile
	wallets      map[string]domain.Wallet
	transactions []domain.WalletTransaction

	// FindDelay widens the check-then-insert window for race tests.
	FindDelay time.Duration
	// BeforeProfileInsert runs before the key check of every profile insert.
	BeforeProfileInsert func()

	faults map[string]*Fault
	calls  map[string]int
}

const (
	OpFindProfile   = "FindProfile"
	OpInsertProfile = "InsertProfile"
	OpFindWallet    = "FindWallet"
	OpInsertWallet  = "InsertWallet"
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.Profile),
		wallets:  make(map[string]domain.Wallet),
		faults:   make(map[string]*Fault),
		calls:    make(map[string]int),
	}
}

// Fail injects a fault for op.
func (s *MemoryStore) Fail(op string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &Fault{Err: err, Times: times}
}

// Calls returns how many times op was invoked, failed calls included.
func (s *MemoryStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *MemoryStore) ProfileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *MemoryStore) WalletCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wallets)
}

// SeedProfile stores a profile without counting as an insert.
func (s *MemoryStore) SeedProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryStore) SeedWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = w
}

func (s *MemoryStore) SeedTransactions(txs ...domain.WalletTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, txs...)
}

// begin records the call and returns the injected fault, if any.
func (s *MemoryStore) begin(op string) error {
	s.calls[op]++
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.faults, op)
		}
	}
	return f.Err
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (domain.Profile, error) {
	if s.FindDelay > 0 {
		time.Sleep(s.FindDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpFindProfile); err != nil {
		return domain.Profile{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	p, ok := s.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *MemoryStore) Insert(ctx context.Context, profile *domain.Profile) error {
	if s.BeforeProfileInsert != nil {
		s.BeforeProfileInsert()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpInsertProfile); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := s.profiles[profile.ID]; ok {
		return domain.ErrDuplicateKey
	}
	profile.CreatedAt = time.Now()
	s.profiles[profile.ID] = *profile
	return nil
}

// Wallets adapts the store to the wallet repository method set.
func (s *MemoryStore) Wallets() *MemoryWallets {
	return &MemoryWallets{s: s}
}

type MemoryWallets struct {
	s *MemoryStore
}

func (w *MemoryWallets) FindByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpFindWallet); err != nil {
		return domain.Wallet{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, err
	}

	wallet, ok := s.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (w *MemoryWallets) Insert(ctx context.Context, wallet *domain.Wallet) error {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpInsertWallet); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := s.profiles[wallet.UserID]; !ok {
		return domain.ErrConstraintViolation
	}
	if _, ok := s.wallets[wallet.UserID]; ok {
		return domain.ErrDuplicateKey
	}
	wallet.CreatedAt = time.Now()
	s.wallets[wallet.UserID] = *wallet
	return nil
}

func (w *MemoryWallets) ListByUserID(ctx context.Context, userID string, txType string) ([]domain.WalletTransaction, error) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.WalletTransaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.UserID != userID {
			continue
		}
		if txType != "" && tx.Type != txType {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
