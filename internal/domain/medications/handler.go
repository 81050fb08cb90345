package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"med-dose-guard/internal/domain/caregivers"
	"med-dose-guard/internal/middleware"
	"med-dose-guard/internal/ports/capabilities"
)

// FreeTierMaxActive es el tope de medicamentos activos del plan free.
// Con la capability medications:unlimited no aplica.
const (
	FreeTierMaxActive   = 10
	CapabilityUnlimited = "medications:unlimited"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *caregivers.Service, caps capabilities.Resolver) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc, caps))
		mr.Get("/", listMedicationsHandler(svc))

		// Detalle (owner o cuidador con meds:read)
		mr.Get("/{medID}", getMedicationHandler(svc, grantsSvc))

		// Editar (owner o cuidador con meds:edit)
		mr.Patch("/{medID}", updateMedicationHandler(svc, grantsSvc))

		// Solo owner
		mr.Delete("/{medID}", deleteMedicationHandler(svc))
		mr.Post("/{medID}/deactivate", setActiveHandler(svc, false))
		mr.Post("/{medID}/reactivate", setActiveHandler(svc, true))
	})

	// Medicamentos compartidos conmigo (cuidador)
	r.Get("/me/shared-medications", listMySharedMedicationsHandler(svc, grantsSvc))
}

type createMedicationRequest struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`

	DoseAmount float64 `json:"dose_amount"`
	DoseUnit   string  `json:"dose_unit"`

	Frequency     string   `json:"frequency"`
	TimesPerDay   int      `json:"times_per_day"`
	ScheduleTimes []string `json:"schedule_times"` // "HH:MM"

	Category     string `json:"category"`
	Instructions string `json:"instructions"`
	Purpose      string `json:"purpose"`
	Prescriber   string `json:"prescriber"`
	Notes        string `json:"notes"`

	Constraints ConstraintList `json:"constraints"`
}

type updateMedicationRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name   *string `json:"name"`
	Dosage *string `json:"dosage"`

	DoseAmount *float64 `json:"dose_amount"`
	DoseUnit   *string  `json:"dose_unit"`

	Frequency     *string   `json:"frequency"`
	TimesPerDay   *int      `json:"times_per_day"`
	ScheduleTimes *[]string `json:"schedule_times"`

	Category     *string `json:"category"`
	Instructions *string `json:"instructions"`
	Purpose      *string `json:"purpose"`
	Prescriber   *string `json:"prescriber"`
	Notes        *string `json:"notes"`

	// Presente = reemplaza la lista completa (nunca edición por índice).
	Constraints *ConstraintList `json:"constraints"`
}

type medicationResponse struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"owner_user_id"`

	Name   string `json:"name"`
	Dosage string `json:"dosage,omitempty"`

	DoseAmount float64 `json:"dose_amount,omitempty"`
	DoseUnit   string  `json:"dose_unit,omitempty"`

	Frequency     string   `json:"frequency"`
	TimesPerDay   int      `json:"times_per_day,omitempty"`
	ScheduleTimes []string `json:"schedule_times,omitempty"`

	Category     string `json:"category"`
	Instructions string `json:"instructions,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	Prescriber   string `json:"prescriber,omitempty"`
	Notes        string `json:"notes,omitempty"`

	Constraints ConstraintList `json:"constraints"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sharedMedicationResponse struct {
	Medication medicationResponse `json:"medication"`
	Grant      sharedGrantSummary `json:"grant"`
	Scopes     []caregivers.Scope `json:"scopes"` // redundante pero útil para UI
}

type sharedGrantSummary struct {
	ID     string            `json:"id"`
	Status caregivers.Status `json:"status"`
}

func createMedicationHandler(svc *Service, caps capabilities.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// Tope free-tier sobre medicamentos activos.
		if caps != nil {
			active, err := svc.ListByOwner(r.Context(), claims.UserID, false)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if len(active) >= FreeTierMaxActive {
				unlimited, err := caps.Has(r.Context(), capabilities.Check{
					UserID:     claims.UserID,
					Capability: CapabilityUnlimited,
				})
				if err != nil || !unlimited {
					http.Error(w, "active medication limit reached", http.StatusForbidden)
					return
				}
			}
		}

		m, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:          req.Name,
			Dosage:        req.Dosage,
			DoseAmount:    req.DoseAmount,
			DoseUnit:      req.DoseUnit,
			Frequency:     req.Frequency,
			TimesPerDay:   req.TimesPerDay,
			ScheduleTimes: req.ScheduleTimes,
			Category:      req.Category,
			Instructions:  req.Instructions,
			Purpose:       req.Purpose,
			Prescriber:    req.Prescriber,
			Notes:         req.Notes,
			Constraints:   req.Constraints,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	// Owner-only (sin mezclar shared)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		includeInactive := r.URL.Query().Get("include_inactive") == "true"

		items, err := svc.ListByOwner(r.Context(), claims.UserID, includeInactive)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getMedicationHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	// Owner bypass, cuidador requiere meds:read
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		m, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if m.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), medID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsRead) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func updateMedicationHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		current, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		// Authorize: owner bypass, si no grant + scope meds:edit
		if current.OwnerUserID != claims.UserID {
			g, err := grantsSvc.GetActiveGrant(r.Context(), medID, claims.UserID)
			if err != nil || !caregivers.HasScope(g, caregivers.ScopeMedsEdit) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updateMedicationRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.Update(r.Context(), medID, UpdateInput{
			Name:          req.Name,
			Dosage:        req.Dosage,
			DoseAmount:    req.DoseAmount,
			DoseUnit:      req.DoseUnit,
			Frequency:     req.Frequency,
			TimesPerDay:   req.TimesPerDay,
			ScheduleTimes: req.ScheduleTimes,
			Category:      req.Category,
			Instructions:  req.Instructions,
			Purpose:       req.Purpose,
			Prescriber:    req.Prescriber,
			Notes:         req.Notes,
			Constraints:   req.Constraints,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				http.Error(w, "medication not found", http.StatusNotFound)
			case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidConstraint):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toMedicationResponse(updated))
	}
}

func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	// Owner-only: borrar cascadea los logs, no se delega.
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		m, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}
		if m.OwnerUserID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if err := svc.Delete(r.Context(), medID); err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "medication not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setActiveHandler(svc *Service, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		medID := chi.URLParam(r, "medID")
		m, err := svc.GetByID(r.Context(), medID)
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}
		if m.OwnerUserID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if active {
			m, err = svc.Reactivate(r.Context(), medID)
		} else {
			m, err = svc.Deactivate(r.Context(), medID)
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toMedicationResponse(m))
	}
}

func listMySharedMedicationsHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	// Devuelve medicamentos compartidos conmigo (grants active con meds:read)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := grantsSvc.ListByGrantee(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		seen := map[string]struct{}{}
		out := make([]sharedMedicationResponse, 0)

		for _, g := range grants {
			if g.Status != caregivers.StatusActive {
				continue
			}
			if !caregivers.HasScope(g, caregivers.ScopeMedsRead) {
				continue
			}
			if _, ok := seen[g.MedicationID]; ok {
				continue
			}
			seen[g.MedicationID] = struct{}{}

			m, err := svc.GetByID(r.Context(), g.MedicationID)
			if err != nil {
				// tolera grants huérfanos
				continue
			}

			out = append(out, sharedMedicationResponse{
				Medication: toMedicationResponse(m),
				Grant: sharedGrantSummary{
					ID:     g.ID,
					Status: g.Status,
				},
				Scopes: g.Scopes,
			})
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toMedicationResponse(m Medication) medicationResponse {
	times := make([]string, 0, len(m.ScheduleTimes))
	for _, t := range m.ScheduleTimes {
		times = append(times, t.String())
	}
	constraints := m.Constraints
	if constraints == nil {
		constraints = ConstraintList{}
	}
	return medicationResponse{
		ID:            m.ID,
		OwnerUserID:   m.OwnerUserID,
		Name:          m.Name,
		Dosage:        m.Dosage,
		DoseAmount:    m.DoseAmount,
		DoseUnit:      m.DoseUnit,
		Frequency:     string(m.Frequency),
		TimesPerDay:   m.TimesPerDay,
		ScheduleTimes: times,
		Category:      string(m.Category),
		Instructions:  m.Instructions,
		Purpose:       m.Purpose,
		Prescriber:    m.Prescriber,
		Notes:         m.Notes,
		Constraints:   constraints,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
