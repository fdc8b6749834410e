package custody

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/money"
)

// MemoryStore is a concurrency-safe in-memory Store for unit tests. It
// honors the same conditional-transition semantics as the Postgres store.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]Account
	transactions map[string]Transaction
	stakes       map[string]Stake
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]Account),
		transactions: make(map[string]Transaction),
		stakes:       make(map[string]Stake),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return errors.New("account exists")
	}
	for _, existing := range s.accounts {
		if existing.UserID == a.UserID {
			return errors.New("user already has an account")
		}
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *MemoryStore) AccountByUser(_ context.Context, userID string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *MemoryStore) AccountByID(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *MemoryStore) TreasuryAccount(_ context.Context) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Role == RoleTreasury {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (s *MemoryStore) CreateTransaction(_ context.Context, t Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[t.ID]; exists {
		return errors.New("transaction exists")
	}
	s.transactions[t.ID] = t
	return nil
}

func (s *MemoryStore) TransactionByID(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (s *MemoryStore) TransactionsByAccount(_ context.Context, accountID string, limit int, status TxStatus) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, t := range s.transactions {
		if t.AccountID != accountID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) BroadcastedTransactions(_ context.Context, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for _, t := range s.transactions {
		if t.Status == TxBroadcasted && t.ChainTxID != "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkBroadcasted(_ context.Context, id, chainTxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.Status != TxPending {
		return ErrConflict
	}
	t.Status = TxBroadcasted
	t.ChainTxID = chainTxID
	t.UpdatedAt = time.Now().UTC()
	s.transactions[id] = t
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, from TxStatus, code, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.Status != from {
		return ErrConflict
	}
	t.Status = TxFailed
	t.FailCode = code
	t.FailReason = reason
	t.UpdatedAt = time.Now().UTC()
	s.transactions[id] = t
	return nil
}

func (s *MemoryStore) MarkConfirmed(_ context.Context, id string, receipt []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.Status != TxBroadcasted {
		return ErrConflict
	}
	t.Status = TxConfirmed
	t.Receipt = receipt
	t.UpdatedAt = time.Now().UTC()
	s.transactions[id] = t
	return nil
}

func (s *MemoryStore) CreateStake(_ context.Context, st Stake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stakes[st.ID]; exists {
		return errors.New("stake exists")
	}
	s.stakes[st.ID] = st
	return nil
}

func (s *MemoryStore) StakeByID(_ context.Context, id string) (Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stakes[id]
	if !ok {
		return Stake{}, ErrStakeNotFound
	}
	return st, nil
}

func (s *MemoryStore) StakesByAccount(_ context.Context, accountID string) ([]Stake, error) {
	return s.listStakes(accountID, "")
}

func (s *MemoryStore) ActiveStakesByAccount(_ context.Context, accountID string) ([]Stake, error) {
	return s.listStakes(accountID, StakeActive)
}

func (s *MemoryStore) listStakes(accountID string, status StakeStatus) ([]Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Stake
	for _, st := range s.stakes {
		if st.AccountID != accountID {
			continue
		}
		if status != "" && st.Status != status {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateStakeAccrual(_ context.Context, id string, accrued money.Amount, lastAccrual time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stakes[id]
	if !ok || st.Status != StakeActive {
		return ErrConflict
	}
	st.Accrued = accrued
	st.LastAccrualAt = lastAccrual
	st.UpdatedAt = time.Now().UTC()
	s.stakes[id] = st
	return nil
}

func (s *MemoryStore) CloseStake(_ context.Context, id, settlementTxID string, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stakes[id]
	if !ok || st.Status != StakeActive {
		return ErrConflict
	}
	st.Status = StakeClosed
	st.SettlementTxID = settlementTxID
	st.ClosedAt = &closedAt
	st.UpdatedAt = time.Now().UTC()
	s.stakes[id] = st
	return nil
}

// SeedStake is a test helper that overwrites a stake row directly,
// bypassing transition rules, to simulate corrupted data.
func (s *MemoryStore) SeedStake(st Stake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stakes[st.ID] = st
}
