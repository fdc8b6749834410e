package withdrawal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shiwasmii/CunaPay.Api/internal/custody"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]Withdrawal
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[string]Withdrawal)}
}

func (r *MemoryRepository) Create(_ context.Context, w Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[w.ID]; exists {
		return custody.ErrConflict
	}
	r.requests[w.ID] = w
	return nil
}

func (r *MemoryRepository) ByID(_ context.Context, id string) (Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.requests[id]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepository) ByUser(_ context.Context, userID string, limit int) ([]Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Withdrawal
	for _, w := range r.requests {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Pending(_ context.Context, limit int) ([]Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Withdrawal
	for _, w := range r.requests {
		if w.Status == StatusPending {
			out = append(out, w)
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
	w, ok := r.requests[id]
	if !ok || w.Status != StatusPending {
		return custody.ErrConflict
	}
	w.Status = StatusApproved
	w.DecidedBy = decidedBy
	w.UpdatedAt = decidedAt
	r.requests[id] = w
	return nil
}

func (r *MemoryRepository) Reject(_ context.Context, id, decidedBy, reason string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.requests[id]
	if !ok || w.Status != StatusPending {
		return custody.ErrConflict
	}
	w.Status = StatusRejected
	w.DecidedBy = decidedBy
	w.Reason = reason
	w.UpdatedAt = decidedAt
	r.requests[id] = w
	return nil
}

func (r *MemoryRepository) SetRefundTx(_ context.Context, id, txID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.requests[id]
	if !ok || w.Status != StatusRejected {
		return custody.ErrConflict
	}
	w.RefundTxID = txID
	w.UpdatedAt = time.Now().UTC()
	r.requests[id] = w
	return nil
}
