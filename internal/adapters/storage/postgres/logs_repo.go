package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

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
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		l.ID,
		l.OwnerUserID,
		l.MedicationID,
		l.MedicationName,
		l.Amount,
		l.Unit,
		l.Timestamp,
		l.RecordedAt,
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
		WHERE id = $1
	`, id)

	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return medlogs.MedicationLog{}, medlogs.ErrNotFound
	}
	return l, err
}

// ListByMedication ordena por timestamp DESC (contrato del log store).
// El filtro de status se aplica en SQL solo cuando viene un único status;
// el caso multi-status se filtra en memoria para no armar SQL dinámico.
func (r *LogsRepo) ListByMedication(ctx context.Context, medicationID string, filter medlogs.ListFilter) ([]medlogs.MedicationLog, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_user_id,
			medication_id, medication_name,
			amount, unit,
			timestamp, recorded_at,
			status, skip_reason
		FROM medication_logs
		WHERE medication_id = $1
		  AND ($2::timestamptz IS NULL OR timestamp >= $2)
		  AND ($3::timestamptz IS NULL OR timestamp <= $3)
		ORDER BY timestamp DESC, id DESC
	`, medicationID, nullTime(filter.From), nullTime(filter.To))
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM medication_logs WHERE id = $1`, id)
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM medication_logs WHERE medication_id = $1`, medicationID)
	return err
}

func scanLog(row rowScanner) (medlogs.MedicationLog, error) {
	var (
		l      medlogs.MedicationLog
		status string
	)
	if err := row.Scan(
		&l.ID,
		&l.OwnerUserID,
		&l.MedicationID,
		&l.MedicationName,
		&l.Amount,
		&l.Unit,
		&l.Timestamp,
		&l.RecordedAt,
		&status,
		&l.SkipReason,
	); err != nil {
		return medlogs.MedicationLog{}, err
	}
	l.Status = medlogs.Status(status)
	return l, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
