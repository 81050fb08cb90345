package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"med-dose-guard/internal/domain/medlogs"
)

type LogsRepo struct {
	db *sql.DB
}

func NewLogsRepo(db *sql.DB) *LogsRepo {
	return &LogsRepo{db: db}
}

func (r *LogsRepo) Create(ctx context.Context, l medlogs.MedicationLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_logs (
			id, owner_user_id,
			medication_id, medication_name,
			amount, unit,
			timestamp, recorded_at,
			status, skip_reason
		) VALUES (?,?,?,?,?,?,?,?,?,?)
	`,
		l.ID,
		l.OwnerUserID,
		l.MedicationID,
		l.MedicationName,
		l.Amount,
		l.Unit,
		encodeTime(l.Timestamp),
		encodeTime(l.RecordedAt),
		string(l.Status),
		l.SkipReason,
	)
	return err
}

func (r *LogsRepo) GetByID(ctx context.Context, id string) (medlogs.MedicationLog, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medlogs.MedicationLog{}, medlogs.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, owner_user_id,
			medication_id, medication_name,
			amount, unit,
			timestamp, recorded_at,
			status, skip_reason
		FROM medication_logs
		WHERE id = ?
	`, id)

	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return medlogs.MedicationLog{}, medlogs.ErrNotFound
	}
	return l, err
}

// ListByMedication ordena por timestamp DESC. RFC3339 UTC ordena
// lexicográficamente igual que cronológicamente, así que el filtro de
// rango se hace directo sobre el texto.
func (r *LogsRepo) ListByMedication(ctx context.Context, medicationID string, filter medlogs.ListFilter) ([]medlogs.MedicationLog, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil, nil
	}

	from := ""
	if filter.From != nil {
		from = encodeTime(*filter.From)
	}
	to := ""
	if filter.To != nil {
		to = encodeTime(*filter.To)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_user_id,
			medication_id, medication_name,
			amount, unit,
			timestamp, recorded_at,
			status, skip_reason
		FROM medication_logs
		WHERE medication_id = ?
		  AND (? = '' OR timestamp >= ?)
		  AND (? = '' OR timestamp <= ?)
		ORDER BY timestamp DESC, id DESC
	`, medicationID, from, from, to, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	limit := filter.EffectiveLimit()
	out := make([]medlogs.MedicationLog, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		if !filter.MatchesStatus(l.Status) {
			continue
		}
		out = append(out, l)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (r *LogsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medication_logs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medlogs.ErrNotFound
	}
	return nil
}

func (r *LogsRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM medication_logs WHERE medication_id = ?`, medicationID)
	return err
}

func scanLog(row rowScanner) (medlogs.MedicationLog, error) {
	var (
		l                 medlogs.MedicationLog
		status            string
		ts, recordedAtRaw string
	)
	if err := row.Scan(
		&l.ID,
		&l.OwnerUserID,
		&l.MedicationID,
		&l.MedicationName,
		&l.Amount,
		&l.Unit,
		&ts,
		&recordedAtRaw,
		&status,
		&l.SkipReason,
	); err != nil {
		return medlogs.MedicationLog{}, err
	}
	l.Status = medlogs.Status(status)

	var err error
	if l.Timestamp, err = decodeTime(ts); err != nil {
		return medlogs.MedicationLog{}, err
	}
	if l.RecordedAt, err = decodeTime(recordedAtRaw); err != nil {
		return medlogs.MedicationLog{}, err
	}
	return l, nil
}
