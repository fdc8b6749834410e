package purchase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// ErrNotFound marks a missing purchase order.
var ErrNotFound = errors.New("purchase not found")

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Purchase
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]Purchase)}
}

func (r *MemoryRepository) Create(_ context.Context, p Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[p.ID]; exists {
		return custody.ErrConflict
	}
	r.orders[p.ID] = p
	return nil
}

func (r *MemoryRepository) ByID(_ context.Context, id string) (Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.orders[id]
	if !ok {
		return Purchase{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) ByUser(_ context.Context, userID string, limit int) ([]Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Purchase
	for _, p := range r.orders {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Pending(_ context.Context, limit int) ([]Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Purchase
	for _, p := range r.orders {
		if p.Status == StatusPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Approve(_ context.Context, id, decidedBy string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.orders[id]
	if !ok || p.Status != StatusPending {
		return custody.ErrConflict
	}
	p.Status = StatusApproved
	p.DecidedBy = decidedBy
	p.UpdatedAt = decidedAt
	r.orders[id] = p
	return nil
}

func (r *MemoryRepository) Reject(_ context.Context, id, decidedBy, reason string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.orders[id]
	if !ok || p.Status != StatusPending {
		return custody.ErrConflict
	}
	p.Status = StatusRejected
	p.DecidedBy = decidedBy
	p.Reason = reason
	p.UpdatedAt = decidedAt
	r.orders[id] = p
	return nil
}

func (r *MemoryRepository) MarkFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.orders[id]
	if !ok || p.Status != StatusApproved {
		return custody.ErrConflict
	}
	p.Status = StatusFailed
	p.Reason = reason
	p.UpdatedAt = time.Now().UTC()
	r.orders[id] = p
	return nil
}

func (r *MemoryRepository) SetSettlementTx(_ context.Context, id, txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.orders[id]
	if !ok || p.Status != StatusApproved {
		return custody.ErrConflict
	}
	p.TxID = txID
	p.UpdatedAt = time.Now().UTC()
	r.orders[id] = p
	return nil
}
