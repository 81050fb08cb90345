package postgres

import (
	"context"
	"database/sql"
	"strings"

	"med-dose-guard/internal/domain/caregivers"
)

type CaregiversRepo struct {
	db *sql.DB
}

func NewCaregiversRepo(db *sql.DB) *CaregiversRepo {
	return &CaregiversRepo{db: db}
}

func (r *CaregiversRepo) Create(ctx context.Context, g caregivers.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO caregiver_grants (
			id, medication_id,
			owner_user_id, grantee_user_id,
			scopes, status,
			created_at, updated_at, revoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.MedicationID,
		g.OwnerUserID,
		g.GranteeUserID,
		joinScopes(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		nullTime(g.RevokedAt),
	)
	return err
}

func (r *CaregiversRepo) Update(ctx context.Context, g caregivers.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE caregiver_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		joinScopes(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		nullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return caregivers.ErrNotFound
	}
	return nil
}

const grantColumns = `
	id, medication_id,
	owner_user_id, grantee_user_id,
	scopes, status,
	created_at, updated_at, revoked_at
`

func (r *CaregiversRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM caregiver_grants
		WHERE id = $1
	`, id)

	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return g, err
}

func (r *CaregiversRepo) ListByMedication(ctx context.Context, medicationID string) ([]caregivers.Grant, error) {
	return r.list(ctx, `medication_id`, medicationID)
}

func (r *CaregiversRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]caregivers.Grant, error) {
	return r.list(ctx, `grantee_user_id`, granteeUserID)
}

func (r *CaregiversRepo) list(ctx context.Context, column, value string) ([]caregivers.Grant, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM caregiver_grants
		WHERE `+column+` = $1
		ORDER BY created_at ASC, id ASC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *CaregiversRepo) GetActiveGrant(ctx context.Context, medicationID, granteeUserID string) (caregivers.Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM caregiver_grants
		WHERE medication_id = $1
		  AND grantee_user_id = $2
		  AND status = $3
		LIMIT 1
	`, medicationID, granteeUserID, string(caregivers.StatusActive))

	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return g, err
}

func scanGrant(row rowScanner) (caregivers.Grant, error) {
	var (
		g       caregivers.Grant
		scopes  string
		status  string
		revoked sql.NullTime
	)
	if err := row.Scan(
		&g.ID,
		&g.MedicationID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		&scopes,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revoked,
	); err != nil {
		return caregivers.Grant{}, err
	}
	g.Scopes = splitScopes(scopes)
	g.Status = caregivers.Status(status)
	if revoked.Valid {
		t := revoked.Time
		g.RevokedAt = &t
	}
	return g, nil
}

// scopes se guardan como texto coma-separado ("meds:read,logs:read").
func joinScopes(ss []caregivers.Scope) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func splitScopes(raw string) []caregivers.Scope {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]caregivers.Scope, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, caregivers.Scope(p))
		}
	}
	return out
}
