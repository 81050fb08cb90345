package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Open abre (o crea) la base sqlite en path usando el driver puro Go.
// Los timestamps se guardan como texto RFC3339 UTC.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// sqlite es single-writer; limitamos el pool para evitar SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS medications (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			dosage TEXT NOT NULL DEFAULT '',
			dose_amount REAL NOT NULL DEFAULT 0,
			dose_unit TEXT NOT NULL DEFAULT '',
			frequency TEXT NOT NULL,
			times_per_day INTEGER NOT NULL DEFAULT 0,
			schedule_times TEXT NOT NULL DEFAULT 'null',
			category TEXT NOT NULL,
			instructions TEXT NOT NULL DEFAULT '',
			purpose TEXT NOT NULL DEFAULT '',
			prescriber TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			constraints TEXT NOT NULL DEFAULT 'null',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_medications_owner ON medications(owner_user_id)`,
		`CREATE TABLE IF NOT EXISTS medication_logs (
			id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			medication_id TEXT NOT NULL,
			medication_name TEXT NOT NULL DEFAULT '',
			amount REAL NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			status TEXT NOT NULL,
			skip_reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_medication_logs_med ON medication_logs(medication_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS caregiver_grants (
			id TEXT PRIMARY KEY,
			medication_id TEXT NOT NULL,
			owner_user_id TEXT NOT NULL,
			grantee_user_id TEXT NOT NULL,
			scopes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			revoked_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_caregiver_grants_med ON caregiver_grants(medication_id)`,
		`CREATE INDEX IF NOT EXISTS idx_caregiver_grants_grantee ON caregiver_grants(grantee_user_id)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
