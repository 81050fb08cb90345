package safety

import (
	"sort"
	"time"

	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
	"med-dose-guard/internal/platform/logger"
)

// SlotStatus clasifica un slot de toma del día.
// @Enum pending, taken, skipped, overdue
type SlotStatus string

const (
	SlotPending SlotStatus = "pending"
	SlotTaken   SlotStatus = "taken"
	SlotSkipped SlotStatus = "skipped"
	SlotOverdue SlotStatus = "overdue"
)

// DefaultGrace es el margen tras el horario del slot antes de marcarlo overdue.
const DefaultGrace = time.Hour

// Slot es un valor transitorio calculado a demanda; nunca se persiste.
type Slot struct {
	MedicationID   string
	MedicationName string

	Time   time.Time
	Status SlotStatus

	// Log asignado al slot (solo Taken/Skipped).
	Log *medlogs.MedicationLog

	// OverdueBy solo tiene sentido con SlotOverdue.
	OverdueBy time.Duration
}

// Scheduler proyecta la frecuencia configurada sobre el día de `now` y
// clasifica cada slot contra el snapshot de logs. Puro y re-entrante.
type Scheduler struct {
	grace time.Duration
	log   logger.Logger // puede ser nil
}

func NewScheduler(grace time.Duration, log logger.Logger) *Scheduler {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Scheduler{grace: grace, log: log}
}

// DaySlots devuelve los slots del día calendario de `now` para un medicamento.
// as_needed: sin slots (elegible ad hoc, sujeto solo al evaluador).
// Frecuencia malformada: cero slots, reportada como warning, nunca fatal.
func (s *Scheduler) DaySlots(med medications.Medication, now time.Time, logs []medlogs.MedicationLog) []Slot {
	if med.Frequency == medications.FrequencyAsNeeded {
		return nil
	}

	n := med.Frequency.SlotsPerDay(med.TimesPerDay)
	if n <= 0 {
		// Invariante de programación rota (la validación debió impedirlo):
		// fail closed con cero slots.
		if s.log != nil {
			s.log.Warn("malformed frequency, projecting zero slots", map[string]any{
				"medication_id": med.ID,
				"frequency":     string(med.Frequency),
				"times_per_day": med.TimesPerDay,
			})
		}
		return []Slot{}
	}

	times := med.ScheduleTimes
	if len(times) != n {
		times = defaultSlotTimes(n)
	}
	slotTimes := make([]time.Time, n)
	for i, t := range times {
		slotTimes[i] = t.On(now)
	}
	sort.Slice(slotTimes, func(i, j int) bool { return slotTimes[i].Before(slotTimes[j]) })

	assigned := assignLogsToSlots(slotTimes, dayLogs(logs, now))

	out := make([]Slot, 0, n)
	for i, st := range slotTimes {
		slot := Slot{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Time:           st,
			Status:         SlotPending,
		}
		switch {
		case assigned[i] != nil:
			slot.Log = assigned[i]
			if assigned[i].Status == medlogs.StatusSkipped {
				slot.Status = SlotSkipped
			} else {
				slot.Status = SlotTaken
			}
		case st.Add(s.grace).Before(now):
			slot.Status = SlotOverdue
			slot.OverdueBy = now.Sub(st)
		}
		out = append(out, slot)
	}
	return out
}

// assignLogsToSlots asigna cada log no reclamado al primer slot elegible:
// el log debe seguir al inicio del slot y preceder al slot siguiente
// (greedy: log más temprano al slot más temprano). Un slot toma un solo log.
func assignLogsToSlots(slotTimes []time.Time, logs []medlogs.MedicationLog) []*medlogs.MedicationLog {
	assigned := make([]*medlogs.MedicationLog, len(slotTimes))
	for i := range logs {
		l := logs[i]
		for j, start := range slotTimes {
			if assigned[j] != nil {
				continue
			}
			if l.Timestamp.Before(start) {
				break // los slots están ordenados; tampoco sigue a los siguientes
			}
			if j+1 < len(slotTimes) && !l.Timestamp.Before(slotTimes[j+1]) {
				continue // pertenece a un slot posterior
			}
			assigned[j] = &logs[i]
			break
		}
	}
	return assigned
}

// dayLogs filtra los logs del mismo día calendario que `now`, ordenados asc.
func dayLogs(logs []medlogs.MedicationLog, now time.Time) []medlogs.MedicationLog {
	y, m, d := now.Date()
	out := make([]medlogs.MedicationLog, 0)
	for _, l := range logs {
		ly, lm, ld := l.Timestamp.In(now.Location()).Date()
		if ly == y && lm == m && ld == d {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func defaultSlotTimes(n int) []medications.TimeOfDay {
	switch n {
	case 1:
		return []medications.TimeOfDay{{Hour: 9}}
	case 2:
		return []medications.TimeOfDay{{Hour: 9}, {Hour: 21}}
	case 3:
		return []medications.TimeOfDay{{Hour: 8}, {Hour: 14}, {Hour: 20}}
	case 4:
		return []medications.TimeOfDay{{Hour: 8}, {Hour: 12}, {Hour: 16}, {Hour: 20}}
	default:
		// Distribuye n tomas parejas entre 08:00 y 20:00.
		out := make([]medications.TimeOfDay, 0, n)
		step := (12 * 60) / (n - 1)
		for i := 0; i < n; i++ {
			mins := 8*60 + i*step
			out = append(out, medications.TimeOfDay{Hour: mins / 60, Minute: mins % 60})
		}
		return out
	}
}

// ---- Consultas agregadas sobre varios medicamentos ----

// Pending devuelve los slots pendientes del día, ordenados por horario.
func (s *Scheduler) Pending(meds []medications.Medication, now time.Time, logsByMed map[string][]medlogs.MedicationLog) []Slot {
	return s.collect(meds, now, logsByMed, SlotPending)
}

// Overdue devuelve los slots vencidos del día (con su "overdue by").
func (s *Scheduler) Overdue(meds []medications.Medication, now time.Time, logsByMed map[string][]medlogs.MedicationLog) []Slot {
	return s.collect(meds, now, logsByMed, SlotOverdue)
}

func (s *Scheduler) HasOverdue(meds []medications.Medication, now time.Time, logsByMed map[string][]medlogs.MedicationLog) bool {
	return len(s.Overdue(meds, now, logsByMed)) > 0
}

// TakenTodayCount cuenta los logs Taken del día sobre todos los medicamentos
// (incluye tomas ad hoc de medicamentos as-needed).
func (s *Scheduler) TakenTodayCount(meds []medications.Medication, now time.Time, logsByMed map[string][]medlogs.MedicationLog) int {
	count := 0
	for _, med := range meds {
		for _, l := range dayLogs(logsByMed[med.ID], now) {
			if l.Status == medlogs.StatusTaken {
				count++
			}
		}
	}
	return count
}

func (s *Scheduler) collect(meds []medications.Medication, now time.Time, logsByMed map[string][]medlogs.MedicationLog, status SlotStatus) []Slot {
	out := make([]Slot, 0)
	for _, med := range meds {
		if !med.IsActive {
			continue
		}
		for _, slot := range s.DaySlots(med, now, logsByMed[med.ID]) {
			if slot.Status == status {
				out = append(out, slot)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
