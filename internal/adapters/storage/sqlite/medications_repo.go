package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"med-dose-guard/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	constraints, err := json.Marshal(m.Constraints)
	if err != nil {
		return err
	}
	times, err := json.Marshal(m.ScheduleTimes)
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
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		m.ID,
		m.OwnerUserID,
		m.Name,
		m.Dosage,
		m.DoseAmount,
		m.DoseUnit,
		string(m.Frequency),
		m.TimesPerDay,
		string(times),
		string(m.Category),
		m.Instructions,
		m.Purpose,
		m.Prescriber,
		m.Notes,
		string(constraints),
		m.IsActive,
		encodeTime(m.CreatedAt),
		encodeTime(m.UpdatedAt),
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	constraints, err := json.Marshal(m.Constraints)
	if err != nil {
		return err
	}
	times, err := json.Marshal(m.ScheduleTimes)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = ?,
			dosage = ?,
			dose_amount = ?,
			dose_unit = ?,
			frequency = ?,
			times_per_day = ?,
			schedule_times = ?,
			category = ?,
			instructions = ?,
			purpose = ?,
			prescriber = ?,
			notes = ?,
			constraints = ?,
			is_active = ?,
			updated_at = ?
		WHERE id = ?
	`,
		m.Name,
		m.Dosage,
		m.DoseAmount,
		m.DoseUnit,
		string(m.Frequency),
		m.TimesPerDay,
		string(times),
		string(m.Category),
		m.Instructions,
		m.Purpose,
		m.Prescriber,
		m.Notes,
		string(constraints),
		m.IsActive,
		encodeTime(m.UpdatedAt),
		m.ID,
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
		WHERE id = ?
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
		WHERE owner_user_id = ?
		  AND (? OR is_active)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
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
		m                    medications.Medication
		freq, cat            string
		timesJSON, consJSON  string
		createdAt, updatedAt string
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
		&consJSON,
		&m.IsActive,
		&createdAt,
		&updatedAt,
	); err != nil {
		return medications.Medication{}, err
	}

	m.Frequency = medications.Frequency(freq)
	m.Category = medications.Category(cat)

	if err := json.Unmarshal([]byte(timesJSON), &m.ScheduleTimes); err != nil {
		return medications.Medication{}, err
	}
	if err := json.Unmarshal([]byte(consJSON), &m.Constraints); err != nil {
		return medications.Medication{}, err
	}

	var err error
	if m.CreatedAt, err = decodeTime(createdAt); err != nil {
		return medications.Medication{}, err
	}
	if m.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return medications.Medication{}, err
	}
	return m, nil
}
