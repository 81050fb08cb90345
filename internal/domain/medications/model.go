package medications

import "time"

// Medication representa un medicamento registrado por un usuario, junto con
// sus restricciones de seguridad de dosificación.
type Medication struct {
	ID          string
	OwnerUserID string

	Name   string
	Dosage string // texto visible para UI, ej "500mg cada 8 horas"

	// Monto estructurado por toma. El texto de Dosage no se parsea nunca;
	// MaxCumulativeAmount suma sobre estos campos.
	DoseAmount float64
	DoseUnit   string // "mg", "ml", "ui"

	Frequency   Frequency
	TimesPerDay int // solo aplica con FrequencyCustom

	// ScheduleTimes define los horarios de cada toma ("08:00", "20:00").
	// Vacío = se derivan horarios por defecto según la frecuencia.
	ScheduleTimes []TimeOfDay

	Category     Category
	Instructions string
	Purpose      string
	Prescriber   string
	Notes        string

	// Lista de valor inmutable: al editar se reemplaza completa,
	// nunca se muta por índice.
	Constraints ConstraintList

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
