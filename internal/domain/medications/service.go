package medications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// LogStore es el contrato mínimo que necesita este módulo para el cascade:
// borrar un medicamento borra también sus logs.
type LogStore interface {
	DeleteByMedication(ctx context.Context, medicationID string) error
}

type Service struct {
	repo Repository
	logs LogStore
	now  func() time.Time
}

func NewService(repo Repository, logs LogStore) *Service {
	return &Service{
		repo: repo,
		logs: logs,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name   string
	Dosage string

	DoseAmount float64
	DoseUnit   string

	Frequency     string
	TimesPerDay   int
	ScheduleTimes []string // "HH:MM"

	Category     string
	Instructions string
	Purpose      string
	Prescriber   string
	Notes        string

	Constraints ConstraintList
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Medication, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Medication{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, ErrInvalidInput
	}

	freq := Frequency(strings.TrimSpace(in.Frequency))
	if !freq.Valid() {
		return Medication{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, in.Frequency)
	}
	if freq == FrequencyCustom && in.TimesPerDay < 1 {
		return Medication{}, fmt.Errorf("%w: custom frequency requires times_per_day >= 1", ErrInvalidInput)
	}
	if in.DoseAmount < 0 {
		return Medication{}, fmt.Errorf("%w: dose_amount must not be negative", ErrInvalidInput)
	}

	cat := Category(strings.TrimSpace(in.Category))
	if cat == "" {
		cat = CategoryOther
	}
	if !cat.Valid() {
		return Medication{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}

	times, err := parseScheduleTimes(in.ScheduleTimes, freq, in.TimesPerDay)
	if err != nil {
		return Medication{}, err
	}

	if err := in.Constraints.Validate(); err != nil {
		return Medication{}, err
	}
	if err := checkAmountCoverage(in.Constraints, in.DoseAmount, in.DoseUnit); err != nil {
		return Medication{}, err
	}

	now := s.now()
	m := Medication{
		ID:            uuid.NewString(),
		OwnerUserID:   ownerUserID,
		Name:          strings.TrimSpace(in.Name),
		Dosage:        strings.TrimSpace(in.Dosage),
		DoseAmount:    in.DoseAmount,
		DoseUnit:      strings.TrimSpace(in.DoseUnit),
		Frequency:     freq,
		TimesPerDay:   in.TimesPerDay,
		ScheduleTimes: times,
		Category:      cat,
		Instructions:  strings.TrimSpace(in.Instructions),
		Purpose:       strings.TrimSpace(in.Purpose),
		Prescriber:    strings.TrimSpace(in.Prescriber),
		Notes:         strings.TrimSpace(in.Notes),
		Constraints:   in.Constraints,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// UpdateInput usa punteros para PATCH real: nil = no tocar.
// Constraints no es puntero a elemento sino a la lista completa:
// si viene presente, reemplaza la lista entera (nunca edición por índice).
type UpdateInput struct {
	Name   *string
	Dosage *string

	DoseAmount *float64
	DoseUnit   *string

	Frequency     *string
	TimesPerDay   *int
	ScheduleTimes *[]string

	Category     *string
	Instructions *string
	Purpose      *string
	Prescriber   *string
	Notes        *string

	Constraints *ConstraintList
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, ErrNotFound
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Medication{}, ErrInvalidInput
		}
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Dosage != nil {
		m.Dosage = strings.TrimSpace(*in.Dosage)
	}
	if in.DoseAmount != nil {
		if *in.DoseAmount < 0 {
			return Medication{}, fmt.Errorf("%w: dose_amount must not be negative", ErrInvalidInput)
		}
		m.DoseAmount = *in.DoseAmount
	}
	if in.DoseUnit != nil {
		m.DoseUnit = strings.TrimSpace(*in.DoseUnit)
	}
	if in.Frequency != nil {
		freq := Frequency(strings.TrimSpace(*in.Frequency))
		if !freq.Valid() {
			return Medication{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, *in.Frequency)
		}
		m.Frequency = freq
	}
	if in.TimesPerDay != nil {
		m.TimesPerDay = *in.TimesPerDay
	}
	if m.Frequency == FrequencyCustom && m.TimesPerDay < 1 {
		return Medication{}, fmt.Errorf("%w: custom frequency requires times_per_day >= 1", ErrInvalidInput)
	}
	if in.ScheduleTimes != nil {
		times, err := parseScheduleTimes(*in.ScheduleTimes, m.Frequency, m.TimesPerDay)
		if err != nil {
			return Medication{}, err
		}
		m.ScheduleTimes = times
	}
	if in.Category != nil {
		cat := Category(strings.TrimSpace(*in.Category))
		if !cat.Valid() {
			return Medication{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, *in.Category)
		}
		m.Category = cat
	}
	if in.Instructions != nil {
		m.Instructions = strings.TrimSpace(*in.Instructions)
	}
	if in.Purpose != nil {
		m.Purpose = strings.TrimSpace(*in.Purpose)
	}
	if in.Prescriber != nil {
		m.Prescriber = strings.TrimSpace(*in.Prescriber)
	}
	if in.Notes != nil {
		m.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Constraints != nil {
		if err := in.Constraints.Validate(); err != nil {
			return Medication{}, err
		}
		m.Constraints = *in.Constraints
	}
	if err := checkAmountCoverage(m.Constraints, m.DoseAmount, m.DoseUnit); err != nil {
		return Medication{}, err
	}

	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string, includeInactive bool) ([]Medication, error) {
	return s.repo.ListByOwner(ctx, ownerUserID, includeInactive)
}

func (s *Service) Deactivate(ctx context.Context, id string) (Medication, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) Reactivate(ctx context.Context, id string) (Medication, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (Medication, error) {
	m, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Medication{}, ErrNotFound
	}
	if m.IsActive == active {
		return m, nil // idempotente
	}
	m.IsActive = active
	m.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// Delete borra el medicamento y cascadea el borrado de sus logs.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	// Cascade después del delete principal: si falla, quedan logs huérfanos
	// con nombre denormalizado, que siguen siendo legibles como histórico.
	return s.logs.DeleteByMedication(ctx, id)
}

// OwnerOf expone el ownerUserID de un medicamento.
// Evita ciclos de imports entre módulos (medications <-> caregivers).
func (s *Service) OwnerOf(ctx context.Context, id string) (string, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return m.OwnerUserID, nil
}

func parseScheduleTimes(raw []string, freq Frequency, timesPerDay int) ([]TimeOfDay, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !freq.Scheduled() {
		return nil, fmt.Errorf("%w: schedule times only apply to scheduled frequencies", ErrInvalidInput)
	}
	if n := freq.SlotsPerDay(timesPerDay); len(raw) != n {
		return nil, fmt.Errorf("%w: expected %d schedule times, got %d", ErrInvalidInput, n, len(raw))
	}

	out := make([]TimeOfDay, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MinutesOfDay() < out[j].MinutesOfDay()
	})
	return out, nil
}

// checkAmountCoverage valida el cruce restricción/medicamento:
// MaxCumulativeAmount necesita monto estructurado por toma y unidad compatible.
func checkAmountCoverage(cs ConstraintList, doseAmount float64, doseUnit string) error {
	for _, c := range cs {
		amt, ok := c.(MaxCumulativeAmount)
		if !ok {
			continue
		}
		if doseAmount <= 0 {
			return fmt.Errorf("%w: max_cumulative_amount requires a structured dose_amount", ErrInvalidInput)
		}
		if !strings.EqualFold(strings.TrimSpace(doseUnit), strings.TrimSpace(amt.Unit)) {
			return fmt.Errorf("%w: constraint unit %q does not match dose_unit %q", ErrInvalidInput, amt.Unit, doseUnit)
		}
	}
	return nil
}
