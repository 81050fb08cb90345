package safety

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"med-dose-guard/internal/domain/caregivers"
	"med-dose-guard/internal/domain/medications"
	"med-dose-guard/internal/domain/medlogs"
	"med-dose-guard/internal/middleware"
)

func RegisterRoutes(r chi.Router, meds *medications.Service, logs *medlogs.Service, gate *Gate, sched *Scheduler, grantsSvc *caregivers.Service) {
	// Registrar tomas/skips (owner o cuidador con logs:create)
	r.Post("/medications/{medID}/doses", attemptDoseHandler(meds, gate, grantsSvc))
	r.Post("/medications/{medID}/doses/force", forceDoseHandler(meds, gate, grantsSvc))
	r.Post("/medications/{medID}/skips", skipDoseHandler(meds, gate, grantsSvc))

	// Consultas de solo lectura (owner o cuidador con meds:read)
	r.Get("/medications/{medID}/safety", safetyCheckHandler(meds, gate, grantsSvc))
	r.Get("/medications/{medID}/next-available", nextAvailableHandler(meds, gate, grantsSvc))
	r.Get("/medications/{medID}/schedule", scheduleHandler(meds, logs, sched, grantsSvc))

	// Undo de un registro (owner o cuidador con logs:create)
	r.Delete("/logs/{logID}", deleteLogHandler(logs, gate, grantsSvc))

	// Agenda agregada del día del usuario autenticado.
	r.Get("/me/schedule", myScheduleHandler(meds, logs, sched))
}

type doseRequest struct {
	// At permite registrar una toma pasada ("me la tomé hace una hora").
	// Vacío = ahora.
	At     string `json:"at"`
	Reason string `json:"reason"` // solo skips
}

type violationResponse struct {
	Type       medications.ConstraintKind `json:"type"`
	Message    string                     `json:"message"`
	Constraint json.RawMessage            `json:"constraint"`
}

type decisionResponse struct {
	Committed bool         `json:"committed"`
	Log       *logResponse `json:"log,omitempty"`

	Violations    []violationResponse `json:"violations"`
	NextAvailable *time.Time          `json:"next_available,omitempty"`

	Overridden bool `json:"overridden,omitempty"`
}

type safetyResponse struct {
	Safe          bool                `json:"safe"`
	Violations    []violationResponse `json:"violations"`
	NextAvailable *time.Time          `json:"next_available,omitempty"`
}

type nextAvailableResponse struct {
	AvailableNow  bool       `json:"available_now"`
	NextAvailable *time.Time `json:"next_available,omitempty"`
}

type logResponse struct {
	ID             string    `json:"id"`
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	Amount         float64   `json:"amount,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	SkipReason     string    `json:"skip_reason,omitempty"`
}

type slotResponse struct {
	MedicationID   string       `json:"medication_id"`
	MedicationName string       `json:"medication_name"`
	Time           time.Time    `json:"time"`
	Status         SlotStatus   `json:"status"`
	Log            *logResponse `json:"log,omitempty"`
	OverdueMinutes int          `json:"overdue_minutes,omitempty"`
}

type scheduleResponse struct {
	Date  string         `json:"date"` // YYYY-MM-DD
	Slots []slotResponse `json:"slots"`
}

type myScheduleResponse struct {
	Date string `json:"date"`

	Slots   []slotResponse `json:"slots"`
	Pending []slotResponse `json:"pending"`
	Overdue []slotResponse `json:"overdue"`

	TakenToday int  `json:"taken_today"`
	HasOverdue bool `json:"has_overdue"`
}

func attemptDoseHandler(meds *medications.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		med, now, ok := authorizeDose(w, r, meds, grantsSvc)
		if !ok {
			return
		}

		d, err := gate.AttemptTaken(r.Context(), med, now)
		if err != nil {
			writeGateError(w, err)
			return
		}

		status := http.StatusOK // no commiteó: violaciones adjuntas
		if d.Committed {
			status = http.StatusCreated
		}
		writeJSON(w, status, toDecisionResponse(d))
	}
}

func forceDoseHandler(meds *medications.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		med, now, ok := authorizeDose(w, r, meds, grantsSvc)
		if !ok {
			return
		}

		d, err := gate.ForceTaken(r.Context(), med, now)
		if err != nil {
			writeGateError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDecisionResponse(d))
	}
}

func skipDoseHandler(meds *medications.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		med, err := meds.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}
		if !canLogDoses(r, med, claims.UserID, grantsSvc) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req doseRequest
		_ = json.NewDecoder(r.Body).Decode(&req) // body opcional

		now, err := resolveAt(req.At)
		if err != nil {
			http.Error(w, "at must be RFC3339", http.StatusBadRequest)
			return
		}

		l, err := gate.LogSkipped(r.Context(), med, now, req.Reason)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toLogResponse(l))
	}
}

func deleteLogHandler(logs *medlogs.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		logID := chi.URLParam(r, "logID")
		l, err := logs.GetByID(r.Context(), logID)
		if err != nil {
			http.Error(w, "log not found", http.StatusNotFound)
			return
		}

		// Owner bypass, cuidador requiere logs:create sobre el medicamento.
		if l.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), l.MedicationID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeLogsCreate) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		if err := gate.DeleteLog(r.Context(), logID); err != nil {
			if errors.Is(err, medlogs.ErrNotFound) {
				http.Error(w, "log not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func safetyCheckHandler(meds *medications.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		med, now, ok := authorizeRead(w, r, meds, grantsSvc)
		if !ok {
			return
		}

		d, err := gate.Check(r.Context(), med, now)
		if err != nil {
			writeGateError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, safetyResponse{
			Safe:          len(d.Violations) == 0,
			Violations:    toViolationResponses(d.Violations),
			NextAvailable: d.NextAvailable,
		})
	}
}

func nextAvailableHandler(meds *medications.Service, gate *Gate, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		med, now, ok := authorizeRead(w, r, meds, grantsSvc)
		if !ok {
			return
		}

		d, err := gate.Check(r.Context(), med, now)
		if err != nil {
			writeGateError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nextAvailableResponse{
			AvailableNow:  d.NextAvailable == nil,
			NextAvailable: d.NextAvailable,
		})
	}
}

func scheduleHandler(meds *medications.Service, logs *medlogs.Service, sched *Scheduler, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		med, now, ok := authorizeRead(w, r, meds, grantsSvc)
		if !ok {
			return
		}

		dl, err := dayLogsFor(r, logs, med.ID, now)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		slots := sched.DaySlots(med, now, dl)
		writeJSON(w, http.StatusOK, scheduleResponse{
			Date:  now.Format("2006-01-02"),
			Slots: toSlotResponses(slots),
		})
	}
}

func myScheduleHandler(meds *medications.Service, logs *medlogs.Service, sched *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		now, err := resolveAt(r.URL.Query().Get("at"))
		if err != nil {
			http.Error(w, "at must be RFC3339", http.StatusBadRequest)
			return
		}

		items, err := meds.ListByOwner(r.Context(), claims.UserID, false)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		logsByMed := make(map[string][]medlogs.MedicationLog, len(items))
		for _, med := range items {
			dl, err := dayLogsFor(r, logs, med.ID, now)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			logsByMed[med.ID] = dl
		}

		all := make([]Slot, 0)
		for _, med := range items {
			all = append(all, sched.DaySlots(med, now, logsByMed[med.ID])...)
		}

		writeJSON(w, http.StatusOK, myScheduleResponse{
			Date:       now.Format("2006-01-02"),
			Slots:      toSlotResponses(all),
			Pending:    toSlotResponses(sched.Pending(items, now, logsByMed)),
			Overdue:    toSlotResponses(sched.Overdue(items, now, logsByMed)),
			TakenToday: sched.TakenTodayCount(items, now, logsByMed),
			HasOverdue: sched.HasOverdue(items, now, logsByMed),
		})
	}
}

// authorizeDose resuelve medicamento + instante y exige owner o logs:create.
func authorizeDose(w http.ResponseWriter, r *http.Request, meds *medications.Service, grantsSvc *caregivers.Service) (medications.Medication, time.Time, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return medications.Medication{}, time.Time{}, false
	}

	medID := chi.URLParam(r, "medID")
	med, err := meds.GetByID(r.Context(), medID)
	if err != nil {
		http.Error(w, "medication not found", http.StatusNotFound)
		return medications.Medication{}, time.Time{}, false
	}
	if !canLogDoses(r, med, claims.UserID, grantsSvc) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return medications.Medication{}, time.Time{}, false
	}

	var req doseRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body opcional

	now, err := resolveAt(req.At)
	if err != nil {
		http.Error(w, "at must be RFC3339", http.StatusBadRequest)
		return medications.Medication{}, time.Time{}, false
	}
	return med, now, true
}

// authorizeRead resuelve medicamento + instante y exige owner o meds:read.
func authorizeRead(w http.ResponseWriter, r *http.Request, meds *medications.Service, grantsSvc *caregivers.Service) (medications.Medication, time.Time, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return medications.Medication{}, time.Time{}, false
	}

	medID := chi.URLParam(r, "medID")
	med, err := meds.GetByID(r.Context(), medID)
	if err != nil {
		http.Error(w, "medication not found", http.StatusNotFound)
		return medications.Medication{}, time.Time{}, false
	}

	if med.OwnerUserID != claims.UserID {
		g, err := grantsSvc.GetActiveGrant(r.Context(), med.ID, claims.UserID)
		if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsRead) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return medications.Medication{}, time.Time{}, false
		}
	}

	now, err := resolveAt(r.URL.Query().Get("at"))
	if err != nil {
		http.Error(w, "at must be RFC3339", http.StatusBadRequest)
		return medications.Medication{}, time.Time{}, false
	}
	return med, now, true
}

func canLogDoses(r *http.Request, med medications.Medication, userID string, grantsSvc *caregivers.Service) bool {
	if med.OwnerUserID == userID {
		return true
	}
	g, err := grantsSvc.GetActiveGrant(r.Context(), med.ID, userID)
	return err == nil && caregivers.HasScope(g, caregivers.ScopeLogsCreate)
}

// dayLogsFor trae los logs del día calendario de `now` para un medicamento.
func dayLogsFor(r *http.Request, logs *medlogs.Service, medID string, now time.Time) ([]medlogs.MedicationLog, error) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.Add(24 * time.Hour)
	return logs.ListByMedication(r.Context(), medID, medlogs.ListFilter{
		From:  &start,
		To:    &end,
		Limit: medlogs.MaxListLimit,
	})
}

func resolveAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLogDataUnavailable):
		http.Error(w, "medication log data unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toDecisionResponse(d Decision) decisionResponse {
	out := decisionResponse{
		Committed:     d.Committed,
		Violations:    toViolationResponses(d.Violations),
		NextAvailable: d.NextAvailable,
		Overridden:    d.Overridden,
	}
	if d.Log != nil {
		l := toLogResponse(*d.Log)
		out.Log = &l
	}
	return out
}

func toViolationResponses(vs []Violation) []violationResponse {
	out := make([]violationResponse, 0, len(vs))
	for _, v := range vs {
		raw, err := medications.MarshalConstraint(v.Constraint)
		if err != nil {
			raw = nil
		}
		out = append(out, violationResponse{
			Type:       v.Constraint.Kind(),
			Message:    v.Message,
			Constraint: raw,
		})
	}
	return out
}

func toSlotResponses(slots []Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		sr := slotResponse{
			MedicationID:   s.MedicationID,
			MedicationName: s.MedicationName,
			Time:           s.Time,
			Status:         s.Status,
			OverdueMinutes: int(s.OverdueBy / time.Minute),
		}
		if s.Log != nil {
			l := toLogResponse(*s.Log)
			sr.Log = &l
		}
		out = append(out, sr)
	}
	return out
}

func toLogResponse(l medlogs.MedicationLog) logResponse {
	return logResponse{
		ID:             l.ID,
		MedicationID:   l.MedicationID,
		MedicationName: l.MedicationName,
		Amount:         l.Amount,
		Unit:           l.Unit,
		Timestamp:      l.Timestamp,
		Status:         string(l.Status),
		SkipReason:     l.SkipReason,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
