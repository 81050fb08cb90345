package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"med-dose-guard/internal/domain/medications"
)

// Los repos SQL devuelven los sentinelas del dominio (medications.ErrNotFound,
// etc.) para que los handlers no dependan del backend elegido.

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	constraints, times, err := encodeMedicationJSON(m)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, owner_user_id,
			name, dosage, dose_amount, dose_unit,
			frequency, times_per_day, schedule_times,
			category, instructions, purpose, prescriber, notes,
			constraints, is_active,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		m.ID,
		m.OwnerUserID,
		m.Name,
		m.Dosage,
		m.DoseAmount,
		m.DoseUnit,
		string(m.Frequency),
		m.TimesPerDay,
		times,
		string(m.Category),
		m.Instructions,
		m.Purpose,
		m.Prescriber,
		m.Notes,
		constraints,
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	constraints, times, err := encodeMedicationJSON(m)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dosage = $3,
			dose_amount = $4,
			dose_unit = $5,
			frequency = $6,
			times_per_day = $7,
			schedule_times = $8,
			category = $9,
			instructions = $10,
			purpose = $11,
			prescriber = $12,
			notes = $13,
			constraints = $14,
			is_active = $15,
			updated_at = $16
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.Dosage,
		m.DoseAmount,
		m.DoseUnit,
		string(m.Frequency),
		m.TimesPerDay,
		times,
		string(m.Category),
		m.Instructions,
		m.Purpose,
		m.Prescriber,
		m.Notes,
		constraints,
		m.IsActive,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

const medicationColumns = `
	id, owner_user_id,
	name, dosage, dose_amount, dose_unit,
	frequency, times_per_day, schedule_times,
	category, instructions, purpose, prescriber, notes,
	constraints, is_active,
	created_at, updated_at
`

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, medications.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE id = $1
	`, id)

	m, err := scanMedication(row)
	if err == sql.ErrNoRows {
		return medications.Medication{}, medications.ErrNotFound
	}
	return m, err
}

func (r *MedicationsRepo) ListByOwner(ctx context.Context, ownerUserID string, includeInactive bool) ([]medications.Medication, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+medicationColumns+`
		FROM medications
		WHERE owner_user_id = $1
		  AND ($2 OR is_active)
		ORDER BY created_at ASC, id ASC
	`, ownerUserID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var (
		m           medications.Medication
		freq, cat   string
		timesJSON   string
		constrsJSON string
	)
	if err := row.Scan(
		&m.ID,
		&m.OwnerUserID,
		&m.Name,
		&m.Dosage,
		&m.DoseAmount,
		&m.DoseUnit,
		&freq,
		&m.TimesPerDay,
		&timesJSON,
		&cat,
		&m.Instructions,
		&m.Purpose,
		&m.Prescriber,
		&m.Notes,
		&constrsJSON,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return medications.Medication{}, err
	}

	m.Frequency = medications.Frequency(freq)
	m.Category = medications.Category(cat)

	if timesJSON != "" {
		if err := json.Unmarshal([]byte(timesJSON), &m.ScheduleTimes); err != nil {
			return medications.Medication{}, err
		}
	}
	if constrsJSON != "" {
		if err := json.Unmarshal([]byte(constrsJSON), &m.Constraints); err != nil {
			return medications.Medication{}, err
		}
	}
	return m, nil
}

// encodeMedicationJSON serializa schedule_times y constraints como columnas
// de texto JSON. El tagged union de constraints ya define su propio envelope.
func encodeMedicationJSON(m medications.Medication) (constraints string, times string, err error) {
	cb, err := json.Marshal(m.Constraints)
	if err != nil {
		return "", "", err
	}
	tb, err := json.Marshal(m.ScheduleTimes)
	if err != nil {
		return "", "", err
	}
	return string(cb), string(tb), nil
}
