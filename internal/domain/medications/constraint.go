package medications

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConstraint se devuelve en validación, antes de que la restricción
// llegue a adjuntarse a un Medication. El evaluador nunca ve config inválida.
var ErrInvalidConstraint = errors.New("invalid constraint configuration")

// ConstraintKind es el tag de la unión.
type ConstraintKind string

const (
	ConstraintMinTimeBetween      ConstraintKind = "min_time_between"
	ConstraintMaxPerPeriod        ConstraintKind = "max_per_period"
	ConstraintMaxCumulativeAmount ConstraintKind = "max_cumulative_amount"
	ConstraintTimeWindow          ConstraintKind = "time_window"
	ConstraintCustom              ConstraintKind = "custom"
)

// Constraint es un set cerrado de cinco variantes. sealed() impide
// implementaciones fuera del paquete; el evaluador hace type switch
// exhaustivo sobre las variantes concretas.
type Constraint interface {
	Kind() ConstraintKind
	Validate() error
	sealed()
}

// MinTimeBetween exige un espaciado mínimo entre tomas consecutivas.
type MinTimeBetween struct {
	MinGap time.Duration
}

func (MinTimeBetween) Kind() ConstraintKind { return ConstraintMinTimeBetween }
func (MinTimeBetween) sealed()              {}

func (c MinTimeBetween) Validate() error {
	if c.MinGap <= 0 {
		return fmt.Errorf("%w: min_gap must be positive", ErrInvalidConstraint)
	}
	return nil
}

// MaxPerPeriod limita la cantidad de tomas en una ventana móvil que termina en "ahora".
type MaxPerPeriod struct {
	MaxCount int
	Period   time.Duration
}

func (MaxPerPeriod) Kind() ConstraintKind { return ConstraintMaxPerPeriod }
func (MaxPerPeriod) sealed()              {}

func (c MaxPerPeriod) Validate() error {
	if c.MaxCount <= 0 {
		return fmt.Errorf("%w: max_count must be positive", ErrInvalidConstraint)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidConstraint)
	}
	return nil
}

// MaxCumulativeAmount limita el monto acumulado en una ventana móvil.
// Requiere que el medicamento tenga monto estructurado por toma.
type MaxCumulativeAmount struct {
	MaxAmount float64
	Unit      string
	Period    time.Duration
}

func (MaxCumulativeAmount) Kind() ConstraintKind { return ConstraintMaxCumulativeAmount }
func (MaxCumulativeAmount) sealed()              {}

func (c MaxCumulativeAmount) Validate() error {
	if c.MaxAmount <= 0 {
		return fmt.Errorf("%w: max_amount must be positive", ErrInvalidConstraint)
	}
	if c.Unit == "" {
		return fmt.Errorf("%w: unit required", ErrInvalidConstraint)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive", ErrInvalidConstraint)
	}
	return nil
}

// TimeWindow restringe las tomas a una ventana horaria diaria.
// Al menos uno de los dos límites debe estar presente; ambos son inclusivos.
type TimeWindow struct {
	NotBefore *TimeOfDay
	NotAfter  *TimeOfDay
}

func (TimeWindow) Kind() ConstraintKind { return ConstraintTimeWindow }
func (TimeWindow) sealed()              {}

func (c TimeWindow) Validate() error {
	if c.NotBefore == nil && c.NotAfter == nil {
		return fmt.Errorf("%w: time window needs not_before and/or not_after", ErrInvalidConstraint)
	}
	if c.NotBefore != nil && !c.NotBefore.Valid() {
		return fmt.Errorf("%w: not_before out of range", ErrInvalidConstraint)
	}
	if c.NotAfter != nil && !c.NotAfter.Valid() {
		return fmt.Errorf("%w: not_after out of range", ErrInvalidConstraint)
	}
	if c.NotBefore != nil && c.NotAfter != nil &&
		c.NotBefore.MinutesOfDay() >= c.NotAfter.MinutesOfDay() {
		return fmt.Errorf("%w: not_before must precede not_after", ErrInvalidConstraint)
	}
	return nil
}

// Custom es solo informativo: nunca produce violaciones.
type Custom struct {
	Description string
}

func (Custom) Kind() ConstraintKind { return ConstraintCustom }
func (Custom) sealed()              {}

func (c Custom) Validate() error {
	if c.Description == "" {
		return fmt.Errorf("%w: description required", ErrInvalidConstraint)
	}
	return nil
}

// ---------------------------------------------------------------
// JSON: envelope con "type" para round-trip sin pérdida de campos.
// Los colaboradores de persistencia usan este mismo formato.
// ---------------------------------------------------------------

type constraintEnvelope struct {
	Type ConstraintKind `json:"type"`

	MinGapSeconds int64 `json:"min_gap_seconds,omitempty"`

	MaxCount      int   `json:"max_count,omitempty"`
	PeriodSeconds int64 `json:"period_seconds,omitempty"`

	MaxAmount float64 `json:"max_amount,omitempty"`
	Unit      string  `json:"unit,omitempty"`

	NotBefore *TimeOfDay `json:"not_before,omitempty"`
	NotAfter  *TimeOfDay `json:"not_after,omitempty"`

	Description string `json:"description,omitempty"`
}

func MarshalConstraint(c Constraint) ([]byte, error) {
	env, err := toEnvelope(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func UnmarshalConstraint(b []byte) (Constraint, error) {
	var env constraintEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return fromEnvelope(env)
}

func toEnvelope(c Constraint) (constraintEnvelope, error) {
	switch c := c.(type) {
	case MinTimeBetween:
		return constraintEnvelope{Type: c.Kind(), MinGapSeconds: int64(c.MinGap / time.Second)}, nil
	case MaxPerPeriod:
		return constraintEnvelope{Type: c.Kind(), MaxCount: c.MaxCount, PeriodSeconds: int64(c.Period / time.Second)}, nil
	case MaxCumulativeAmount:
		return constraintEnvelope{Type: c.Kind(), MaxAmount: c.MaxAmount, Unit: c.Unit, PeriodSeconds: int64(c.Period / time.Second)}, nil
	case TimeWindow:
		return constraintEnvelope{Type: c.Kind(), NotBefore: c.NotBefore, NotAfter: c.NotAfter}, nil
	case Custom:
		return constraintEnvelope{Type: c.Kind(), Description: c.Description}, nil
	default:
		return constraintEnvelope{}, fmt.Errorf("unknown constraint kind %T", c)
	}
}

func fromEnvelope(env constraintEnvelope) (Constraint, error) {
	switch env.Type {
	case ConstraintMinTimeBetween:
		return MinTimeBetween{MinGap: time.Duration(env.MinGapSeconds) * time.Second}, nil
	case ConstraintMaxPerPeriod:
		return MaxPerPeriod{MaxCount: env.MaxCount, Period: time.Duration(env.PeriodSeconds) * time.Second}, nil
	case ConstraintMaxCumulativeAmount:
		return MaxCumulativeAmount{MaxAmount: env.MaxAmount, Unit: env.Unit, Period: time.Duration(env.PeriodSeconds) * time.Second}, nil
	case ConstraintTimeWindow:
		return TimeWindow{NotBefore: env.NotBefore, NotAfter: env.NotAfter}, nil
	case ConstraintCustom:
		return Custom{Description: env.Description}, nil
	default:
		return nil, fmt.Errorf("unknown constraint type %q", env.Type)
	}
}

// ConstraintList serializa la lista completa de restricciones.
// La lista se trata como valor: al editar el medicamento se reemplaza entera.
type ConstraintList []Constraint

func (l ConstraintList) MarshalJSON() ([]byte, error) {
	envs := make([]constraintEnvelope, 0, len(l))
	for _, c := range l {
		env, err := toEnvelope(c)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

func (l *ConstraintList) UnmarshalJSON(b []byte) error {
	var envs []constraintEnvelope
	if err := json.Unmarshal(b, &envs); err != nil {
		return err
	}
	out := make(ConstraintList, 0, len(envs))
	for _, env := range envs {
		c, err := fromEnvelope(env)
		if err != nil {
			return err
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

// Validate valida cada restricción de la lista (declaración en orden).
func (l ConstraintList) Validate() error {
	for i, c := range l {
		if c == nil {
			return fmt.Errorf("%w: constraint %d is nil", ErrInvalidConstraint, i)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("constraint %d: %w", i, err)
		}
	}
	return nil
}
