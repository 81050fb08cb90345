package medlogs

import "time"

// Status del registro de toma.
// @Enum taken, skipped
type Status string

const (
	StatusTaken   Status = "taken"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	return s == StatusTaken || s == StatusSkipped
}

// MedicationLog es un evento de ingesta. Inmutable una vez creado;
// la única mutación permitida es el borrado del registro completo (undo).
type MedicationLog struct {
	ID          string
	OwnerUserID string

	MedicationID string
	// Snapshot denormalizado: sobrevive al rename/delete del medicamento.
	MedicationName string

	// Snapshot del monto estructurado al momento de la toma.
	Amount float64
	Unit   string

	Timestamp  time.Time // instante de la toma (o del skip)
	RecordedAt time.Time

	Status     Status
	SkipReason string // solo con StatusSkipped
}
