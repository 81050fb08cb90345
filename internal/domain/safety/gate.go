package safety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrLogDataUnavailable: el log store no respondió. La consulta falla
	// hacia el caller; el motor no inventa un snapshot vacío por su cuenta.
	ErrLogDataUnavailable = errors.New("medication log data unavailable")
)

// Gate es el único punto mutante del motor: consulta el evaluador y decide
// si commitear. Nunca bloquea categóricamente: ForceTaken siempre commitea.
type Gate struct {
	logs medlogs.Repository

	// Un mutex por medicationID serializa los appends y cierra la carrera
	// check-then-act de dos "tomar" casi simultáneos que verían ambos
	// "sin violaciones" antes de que cualquiera escriba.
	locks sync.Map
}

func NewGate(logs medlogs.Repository) *Gate {
	return &Gate{logs: logs}
}

// Decision es el resultado de una operación del gate.
type Decision struct {
	Committed bool
	Log       *medlogs.MedicationLog

	Violations    []Violation
	NextAvailable *time.Time

	// Overridden queda en true cuando ForceTaken commiteó con violaciones
	// presentes. No es un error: es informativo/auditable.
	Overridden bool
}

// AttemptTaken corre el evaluador y commitea un log Taken solo si no hay
// violaciones. Con violaciones devuelve el set completo más el próximo
// instante seguro, sin commitear nada.
func (g *Gate) AttemptTaken(ctx context.Context, med medications.Medication, now time.Time) (Decision, error) {
	mu := g.lockFor(med.ID)
	mu.Lock()
	defer mu.Unlock()

	logs, err := g.snapshot(ctx, med, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLogDataUnavailable, err)
	}

	if vs := CheckConstraints(med, now, logs); len(vs) > 0 {
		return Decision{
			Violations:    vs,
			NextAvailable: NextAvailableTime(med, now, logs),
		}, nil
	}

	l := newLog(med, now, medlogs.StatusTaken, "")
	if err := g.logs.Create(ctx, l); err != nil {
		return Decision{}, err
	}
	return Decision{Committed: true, Log: &l}, nil
}

// ForceTaken commitea incondicionalmente (override explícito del usuario).
// Las violaciones presentes se devuelven igual, para auditoría.
func (g *Gate) ForceTaken(ctx context.Context, med medications.Medication, now time.Time) (Decision, error) {
	mu := g.lockFor(med.ID)
	mu.Lock()
	defer mu.Unlock()

	// Best-effort: si el snapshot falla, el override commitea igual
	// (nunca se le niega el registro al usuario), sin detalle de violaciones.
	var vs []Violation
	if logs, err := g.snapshot(ctx, med, now); err == nil {
		vs = CheckConstraints(med, now, logs)
	}

	l := newLog(med, now, medlogs.StatusTaken, "")
	if err := g.logs.Create(ctx, l); err != nil {
		return Decision{}, err
	}
	return Decision{
		Committed:  true,
		Log:        &l,
		Violations: vs,
		Overridden: len(vs) > 0,
	}, nil
}

// LogSkipped siempre commitea: los skips no tienen restricciones.
func (g *Gate) LogSkipped(ctx context.Context, med medications.Medication, now time.Time, reason string) (medlogs.MedicationLog, error) {
	mu := g.lockFor(med.ID)
	mu.Lock()
	defer mu.Unlock()

	l := newLog(med, now, medlogs.StatusSkipped, strings.TrimSpace(reason))
	if err := g.logs.Create(ctx, l); err != nil {
		return medlogs.MedicationLog{}, err
	}
	return l, nil
}

// DeleteLog borra un registro (undo). No hace falta re-chequear: quitar un
// log solo puede reducir violaciones futuras.
func (g *Gate) DeleteLog(ctx context.Context, logID string) error {
	logID = strings.TrimSpace(logID)
	if logID == "" {
		return ErrInvalidInput
	}
	return g.logs.Delete(ctx, logID)
}

// Check corre evaluador + próximo instante seguro sin commitear nada.
// Es la consulta de solo lectura detrás de GET /safety y /next-available.
func (g *Gate) Check(ctx context.Context, med medications.Medication, now time.Time) (Decision, error) {
	logs, err := g.snapshot(ctx, med, now)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrLogDataUnavailable, err)
	}
	vs := CheckConstraints(med, now, logs)
	return Decision{
		Violations:    vs,
		NextAvailable: NextAvailableTime(med, now, logs),
	}, nil
}

func (g *Gate) lockFor(medicationID string) *sync.Mutex {
	v, _ := g.locks.LoadOrStore(medicationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// snapshot carga los logs que el evaluador puede llegar a necesitar:
// una ventana hacia atrás del tamaño del período más largo configurado.
func (g *Gate) snapshot(ctx context.Context, med medications.Medication, now time.Time) ([]medlogs.MedicationLog, error) {
	from := now.Add(-lookback(med))
	return g.logs.ListByMedication(ctx, med.ID, medlogs.ListFilter{
		From:  &from,
		To:    &now,
		Limit: medlogs.MaxListLimit,
	})
}

// lookback devuelve el período de observación más largo entre las
// restricciones, nunca menor a 24h (para cubrir ventanas horarias y el día).
func lookback(med medications.Medication) time.Duration {
	max := 24 * time.Hour
	for _, c := range med.Constraints {
		var p time.Duration
		switch c := c.(type) {
		case medications.MinTimeBetween:
			p = c.MinGap
		case medications.MaxPerPeriod:
			p = c.Period
		case medications.MaxCumulativeAmount:
			p = c.Period
		}
		if p > max {
			max = p
		}
	}
	return max
}

func newLog(med medications.Medication, now time.Time, status medlogs.Status, skipReason string) medlogs.MedicationLog {
	return medlogs.MedicationLog{
		ID:             uuid.NewString(),
		OwnerUserID:    med.OwnerUserID,
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Amount:         med.DoseAmount,
		Unit:           med.DoseUnit,
		Timestamp:      now,
		RecordedAt:     now,
		Status:         status,
		SkipReason:     skipReason,
	}
}
