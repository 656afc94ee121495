package memory

import (
	"context"
	"slices"
	"sync"

	"roomstay/internal/domain/cancellation"
)

type PolicyRepository struct {
	mu    sync.RWMutex
	items map[string]cancellation.Policy
}

func NewPolicyRepository() *PolicyRepository {
	return &PolicyRepository{items: make(map[string]cancellation.Policy)}
}

func (r *PolicyRepository) Policy(ctx context.Context, id string) (*cancellation.Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, cancellation.ErrPolicyNotFound
	}
	p.Tiers = slices.Clone(p.Tiers)
	return &p, nil
}

func (r *PolicyRepository) Save(ctx context.Context, p *cancellation.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Version++
	stored := *p
	stored.Tiers = slices.Clone(p.Tiers)
	r.items[p.ID] = stored
	return nil
}

var _ cancellation.Repository = (*PolicyRepository)(nil)
