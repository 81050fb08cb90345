package memory

import (
	"context"
	"sort"
	"sync"

	"med-dose-guard/internal/domain/medications"
)

// MedicationsRepo es la implementación in-memory. Útil para dev y tests;
// el contrato de orden y copia defensiva es el mismo que el de SQL.
type MedicationsRepo struct {
	mu   sync.RWMutex
	meds map[string]medications.Medication
}

func NewMedicationsRepo() *MedicationsRepo {
	return &MedicationsRepo{meds: make(map[string]medications.Medication)}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meds[m.ID] = copyMedication(m)
	return nil
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meds[m.ID]; !ok {
		return medications.ErrNotFound
	}
	r.meds[m.ID] = copyMedication(m)
	return nil
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meds[id]
	if !ok {
		return medications.Medication{}, medications.ErrNotFound
	}
	return copyMedication(m), nil
}

func (r *MedicationsRepo) ListByOwner(ctx context.Context, ownerUserID string, includeInactive bool) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.meds {
		if m.OwnerUserID != ownerUserID {
			continue
		}
		if !includeInactive && !m.IsActive {
			continue
		}
		out = append(out, copyMedication(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meds[id]; !ok {
		return medications.ErrNotFound
	}
	delete(r.meds, id)
	return nil
}

// copyMedication copia los slices para que el caller no pueda mutar
// lo guardado (las constraints son lista de valor inmutable).
func copyMedication(m medications.Medication) medications.Medication {
	out := m
	if m.ScheduleTimes != nil {
		out.ScheduleTimes = make([]medications.TimeOfDay, len(m.ScheduleTimes))
		copy(out.ScheduleTimes, m.ScheduleTimes)
	}
	if m.Constraints != nil {
		out.Constraints = make(medications.ConstraintList, len(m.Constraints))
		copy(out.Constraints, m.Constraints)
	}
	return out
}
