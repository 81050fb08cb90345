package safety

import (
	"testing"
	"time"

	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
)

func twiceDailyMed() medications.Medication {
	return medications.Medication{
		ID:        "med-1",
		Name:      "Amoxicilina",
		Frequency: medications.FrequencyTwiceDaily,
		ScheduleTimes: []medications.TimeOfDay{
			{Hour: 8}, {Hour: 20},
		},
		IsActive: true,
	}
}

func TestDaySlots_AsNeeded_NoSlots(t *testing.T) {
	sched := NewScheduler(0, nil)
	med := medications.Medication{ID: "med-1", Frequency: medications.FrequencyAsNeeded, IsActive: true}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if slots := sched.DaySlots(med, now, nil); slots != nil {
		t.Fatalf("as-needed medications project no slots, got %d", len(slots))
	}
}

func TestDaySlots_MalformedFrequency_ZeroSlots(t *testing.T) {
	sched := NewScheduler(0, nil)
	med := medications.Medication{
		ID:          "med-1",
		Frequency:   medications.FrequencyCustom,
		TimesPerDay: 0, // malformado: la validación debió impedirlo
		IsActive:    true,
	}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	slots := sched.DaySlots(med, now, nil)
	if slots == nil || len(slots) != 0 {
		t.Fatalf("malformed frequency must fail closed with zero slots, got %v", slots)
	}
}

func TestDaySlots_PendingAndOverdue(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)
	med := twiceDailyMed()

	// 09:30: el slot de las 08:00 ya venció (gracia 1h), el de las 20:00 pendiente.
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	slots := sched.DaySlots(med, now, nil)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Status != SlotOverdue {
		t.Fatalf("expected first slot overdue, got %s", slots[0].Status)
	}
	if want := 90 * time.Minute; slots[0].OverdueBy != want {
		t.Fatalf("expected overdue by %s, got %s", want, slots[0].OverdueBy)
	}
	if slots[1].Status != SlotPending {
		t.Fatalf("expected second slot pending, got %s", slots[1].Status)
	}
}

func TestDaySlots_WithinGrace_StillPending(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)
	med := twiceDailyMed()

	// 08:45: dentro de la gracia de 1h.
	now := time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC)
	slots := sched.DaySlots(med, now, nil)
	if slots[0].Status != SlotPending {
		t.Fatalf("expected pending within grace, got %s", slots[0].Status)
	}
}

func TestDaySlots_LogClaimsOneSlotOnly(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)
	med := twiceDailyMed()
	now := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)

	// Dos logs en el tramo de la mañana: solo uno reclama el slot de las 08:00.
	logs := []medlogs.MedicationLog{
		takenLog("med-1", time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC), 0, ""),
		takenLog("med-1", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 0, ""),
	}

	slots := sched.DaySlots(med, now, logs)
	if slots[0].Status != SlotTaken {
		t.Fatalf("expected morning slot taken, got %s", slots[0].Status)
	}
	if slots[0].Log == nil || !slots[0].Log.Timestamp.Equal(logs[0].Timestamp) {
		t.Fatalf("expected earliest log assigned to earliest slot")
	}
	// El segundo log NO se desliza al slot de la noche.
	if slots[1].Status != SlotOverdue {
		t.Fatalf("expected evening slot overdue, got %s", slots[1].Status)
	}
}

func TestDaySlots_SkippedLog(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)
	med := twiceDailyMed()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	logs := []medlogs.MedicationLog{
		{
			ID:           "skip-1",
			MedicationID: "med-1",
			Timestamp:    time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC),
			Status:       medlogs.StatusSkipped,
			SkipReason:   "ayuno",
		},
	}

	slots := sched.DaySlots(med, now, logs)
	if slots[0].Status != SlotSkipped {
		t.Fatalf("expected skipped slot, got %s", slots[0].Status)
	}
}

func TestDaySlots_DefaultTimes_WhenUnconfigured(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)
	med := medications.Medication{
		ID:        "med-1",
		Frequency: medications.FrequencyThreeTimesDaily,
		IsActive:  true,
	}
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	slots := sched.DaySlots(med, now, nil)
	if len(slots) != 3 {
		t.Fatalf("expected 3 default slots, got %d", len(slots))
	}
	want := []int{8, 14, 20}
	for i, s := range slots {
		if s.Time.Hour() != want[i] {
			t.Fatalf("slot %d: expected hour %d, got %d", i, want[i], s.Time.Hour())
		}
	}
}

func TestScheduler_Aggregates(t *testing.T) {
	sched := NewScheduler(time.Hour, nil)

	medA := twiceDailyMed()
	medB := medications.Medication{
		ID:        "med-2",
		Name:      "Vitamina D",
		Frequency: medications.FrequencyOnceDaily,
		ScheduleTimes: []medications.TimeOfDay{
			{Hour: 9},
		},
		IsActive: true,
	}
	inactive := medications.Medication{
		ID:        "med-3",
		Frequency: medications.FrequencyOnceDaily,
		IsActive:  false,
	}
	meds := []medications.Medication{medA, medB, inactive}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	logsByMed := map[string][]medlogs.MedicationLog{
		"med-2": {takenLog("med-2", time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC), 0, "")},
	}

	// med-1: 08:00 overdue, 20:00 pending. med-2: 09:00 taken. med-3: inactivo.
	overdue := sched.Overdue(meds, now, logsByMed)
	if len(overdue) != 1 || overdue[0].MedicationID != "med-1" {
		t.Fatalf("expected 1 overdue slot for med-1, got %v", overdue)
	}
	pending := sched.Pending(meds, now, logsByMed)
	if len(pending) != 1 || pending[0].MedicationID != "med-1" {
		t.Fatalf("expected 1 pending slot for med-1, got %v", pending)
	}
	if !sched.HasOverdue(meds, now, logsByMed) {
		t.Fatalf("expected HasOverdue true")
	}
	if got := sched.TakenTodayCount(meds, now, logsByMed); got != 1 {
		t.Fatalf("expected 1 taken today, got %d", got)
	}
}
