package memory

import (
	"context"
	"sort"
	"sync"

	"med-dose-guard/internal/domain/medlogs"
)

type LogsRepo struct {
	mu   sync.RWMutex
	logs map[string]medlogs.MedicationLog
}

func NewLogsRepo() *LogsRepo {
	return &LogsRepo{logs: make(map[string]medlogs.MedicationLog)}
}

func (r *LogsRepo) Create(ctx context.Context, l medlogs.MedicationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[l.ID] = l
	return nil
}

func (r *LogsRepo) GetByID(ctx context.Context, id string) (medlogs.MedicationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[id]
	if !ok {
		return medlogs.MedicationLog{}, medlogs.ErrNotFound
	}
	return l, nil
}

// ListByMedication devuelve los logs de un medicamento ordenados por
// Timestamp descendente, respetando filtro y límite.
func (r *LogsRepo) ListByMedication(ctx context.Context, medicationID string, filter medlogs.ListFilter) ([]medlogs.MedicationLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medlogs.MedicationLog, 0)
	for _, l := range r.logs {
		if l.MedicationID != medicationID {
			continue
		}
		if filter.From != nil && l.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && l.Timestamp.After(*filter.To) {
			continue
		}
		if !filter.MatchesStatus(l.Status) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LogsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[id]; !ok {
		return medlogs.ErrNotFound
	}
	delete(r.logs, id)
	return nil
}

func (r *LogsRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.logs {
		if l.MedicationID == medicationID {
			delete(r.logs, id)
		}
	}
	return nil
}
