package medlogs

import (
	"context"
	"time"
)

// Repository es el contrato de log store que necesita el motor de seguridad:
// lectura ordenada por medicamento, append y borrado por registro.
// La implementación debe devolver ListByMedication ordenado por Timestamp
// descendente (más reciente primero).
type Repository interface {
	Create(ctx context.Context, l MedicationLog) error
	GetByID(ctx context.Context, id string) (MedicationLog, error)
	ListByMedication(ctx context.Context, medicationID string, filter ListFilter) ([]MedicationLog, error)
	Delete(ctx context.Context, id string) error
	DeleteByMedication(ctx context.Context, medicationID string) error
}

type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Statuses []Status
	Limit    int // default 100, max 1000
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// EffectiveLimit normaliza el límite pedido.
func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// MatchesStatus aplica el filtro de status (vacío = todos).
func (f ListFilter) MatchesStatus(s Status) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == s {
			return true
		}
	}
	return false
}
