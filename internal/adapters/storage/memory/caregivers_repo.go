package memory

import (
	"context"
	"sort"
	"sync"

	"med-dose-guard/internal/domain/caregivers"
)

type CaregiversRepo struct {
	mu     sync.RWMutex
	grants map[string]caregivers.Grant
}

func NewCaregiversRepo() *CaregiversRepo {
	return &CaregiversRepo{grants: make(map[string]caregivers.Grant)}
}

func (r *CaregiversRepo) Create(ctx context.Context, g caregivers.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[g.ID] = copyGrant(g)
	return nil
}

func (r *CaregiversRepo) Update(ctx context.Context, g caregivers.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[g.ID]; !ok {
		return caregivers.ErrNotFound
	}
	r.grants[g.ID] = copyGrant(g)
	return nil
}

func (r *CaregiversRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[id]
	if !ok {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return copyGrant(g), nil
}

func (r *CaregiversRepo) ListByMedication(ctx context.Context, medicationID string) ([]caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Grant, 0)
	for _, g := range r.grants {
		if g.MedicationID == medicationID {
			out = append(out, copyGrant(g))
		}
	}
	sortGrants(out)
	return out, nil
}

func (r *CaregiversRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]caregivers.Grant, 0)
	for _, g := range r.grants {
		if g.GranteeUserID == granteeUserID {
			out = append(out, copyGrant(g))
		}
	}
	sortGrants(out)
	return out, nil
}

func (r *CaregiversRepo) GetActiveGrant(ctx context.Context, medicationID, granteeUserID string) (caregivers.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.grants {
		if g.MedicationID == medicationID && g.GranteeUserID == granteeUserID && g.Status == caregivers.StatusActive {
			return copyGrant(g), nil
		}
	}
	return caregivers.Grant{}, caregivers.ErrNotFound
}

func sortGrants(gs []caregivers.Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].ID < gs[j].ID
		}
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}

func copyGrant(g caregivers.Grant) caregivers.Grant {
	out := g
	if g.Scopes != nil {
		out.Scopes = make([]caregivers.Scope, len(g.Scopes))
		copy(out.Scopes, g.Scopes)
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		out.RevokedAt = &t
	}
	return out
}
