package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"med-dose-guard/internal/domain/medlogs"
)

func seedLogs(t *testing.T, repo *LogsRepo, medID string, n int, start time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		l := medlogs.MedicationLog{
			ID:           fmt.Sprintf("log-%03d", i),
			MedicationID: medID,
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			Status:       medlogs.StatusTaken,
		}
		if err := repo.Create(context.Background(), l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestLogsRepo_List_OrderAndLimit(t *testing.T) {
	repo := NewLogsRepo()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedLogs(t, repo, "med-1", 5, start)

	out, err := repo.ListByMedication(context.Background(), "med-1", medlogs.ListFilter{Limit: 3})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected limit 3, got %d", len(out))
	}
	// Más reciente primero.
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.After(out[i-1].Timestamp) {
			t.Fatalf("expected descending order, got %v then %v", out[i-1].Timestamp, out[i].Timestamp)
		}
	}
	if !out[0].Timestamp.Equal(start.Add(4 * time.Hour)) {
		t.Fatalf("expected newest log first, got %v", out[0].Timestamp)
	}
}

func TestLogsRepo_List_RangeAndStatus(t *testing.T) {
	repo := NewLogsRepo()
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedLogs(t, repo, "med-1", 4, start)

	skip := medlogs.MedicationLog{
		ID:           "skip-1",
		MedicationID: "med-1",
		Timestamp:    start.Add(90 * time.Minute),
		Status:       medlogs.StatusSkipped,
	}
	if err := repo.Create(ctx, skip); err != nil {
		t.Fatalf("create skip: %v", err)
	}

	from := start.Add(time.Hour)
	to := start.Add(2 * time.Hour)
	out, err := repo.ListByMedication(ctx, "med-1", medlogs.ListFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	// Rango inclusivo en ambos extremos: 01:00, 01:30 (skip) y 02:00.
	if len(out) != 3 {
		t.Fatalf("expected 3 logs in range, got %d", len(out))
	}

	out, err = repo.ListByMedication(ctx, "med-1", medlogs.ListFilter{
		Statuses: []medlogs.Status{medlogs.StatusSkipped},
	})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "skip-1" {
		t.Fatalf("expected only the skip log, got %v", out)
	}
}

func TestLogsRepo_DeleteByMedication(t *testing.T) {
	repo := NewLogsRepo()
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedLogs(t, repo, "med-1", 3, start)
	other := medlogs.MedicationLog{
		ID:           "other-1",
		MedicationID: "med-2",
		Timestamp:    start,
		Status:       medlogs.StatusTaken,
	}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteByMedication(ctx, "med-1"); err != nil {
		t.Fatalf("delete by medication: %v", err)
	}
	if _, err := repo.GetByID(ctx, "log-000"); !errors.Is(err, medlogs.ErrNotFound) {
		t.Fatalf("expected cascade delete, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "other-1"); err != nil {
		t.Fatalf("other medication logs must survive: %v", err)
	}
}
