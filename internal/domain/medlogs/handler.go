package medlogs

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"med-dose-guard/internal/domain/caregivers"
	"med-dose-guard/internal/middleware"
)

// MedicationOwnerLookup evita importar el paquete medications (rompe ciclos).
type MedicationOwnerLookup interface {
	OwnerOf(ctx context.Context, medicationID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, medOwners MedicationOwnerLookup, grantsSvc *caregivers.Service) {
	// Histórico de tomas (owner o cuidador con logs:read)
	r.Get("/medications/{medID}/logs", listLogsHandler(svc, medOwners, grantsSvc))
}

type logResponse struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"owner_user_id"`

	MedicationID   string `json:"medication_id"`
	MedicationName string `json:"medication_name"`

	Amount float64 `json:"amount,omitempty"`
	Unit   string  `json:"unit,omitempty"`

	Timestamp  time.Time `json:"timestamp"`
	RecordedAt time.Time `json:"recorded_at"`

	Status     Status `json:"status"`
	SkipReason string `json:"skip_reason,omitempty"`
}

func listLogsHandler(svc *Service, medOwners MedicationOwnerLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		ownerID, err := medOwners.OwnerOf(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// Owner bypass, cuidador requiere logs:read
		if ownerID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), medID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeLogsRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListByMedication(r.Context(), medID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]logResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toLogResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// parseListFilter arma el filtro desde query params:
// from/to (RFC3339), status (coma-separado), limit.
func parseListFilter(r *http.Request) (ListFilter, error) {
	var f ListFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilter{}, badParam("from must be RFC3339")
		}
		f.From = &t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilter{}, badParam("to must be RFC3339")
		}
		f.To = &t
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := Status(strings.TrimSpace(part))
			if !st.Valid() {
				return ListFilter{}, badParam("status must be taken or skipped")
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return ListFilter{}, badParam("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

type badParam string

func (e badParam) Error() string { return string(e) }

func toLogResponse(l MedicationLog) logResponse {
	return logResponse{
		ID:             l.ID,
		OwnerUserID:    l.OwnerUserID,
		MedicationID:   l.MedicationID,
		MedicationName: l.MedicationName,
		Amount:         l.Amount,
		Unit:           l.Unit,
		Timestamp:      l.Timestamp,
		RecordedAt:     l.RecordedAt,
		Status:         l.Status,
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
