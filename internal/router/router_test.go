package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"med-dose-guard/internal/router"
)

// doReq dispara un request con el user inyectado vía header de dev.
func doReq(t *testing.T, srv *httptest.Server, method, path, userID string, body any) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	var out bytes.Buffer
	_, _ = out.ReadFrom(res.Body)
	return res.StatusCode, out.Bytes()
}

func decodeInto(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode response %q: %v", raw, err)
	}
}

func TestHTTP_EndToEnd_CaregiverDoseFlow(t *testing.T) {
	srv := httptest.NewServer(router.NewRouter(router.Options{}))
	defer srv.Close()

	const owner = "owner-1"
	const carer = "carer-1"

	// Owner crea el medicamento con espaciado mínimo de 4h.
	status, raw := doReq(t, srv, http.MethodPost, "/medications", owner, map[string]any{
		"name":        "Ibuprofeno",
		"frequency":   "as_needed",
		"dose_amount": 400,
		"dose_unit":   "mg",
		"constraints": []map[string]any{
			{"type": "min_time_between", "min_gap_seconds": 4 * 3600},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("create medication: expected 201, got %d (%s)", status, raw)
	}
	var med struct {
		ID          string `json:"id"`
		OwnerUserID string `json:"owner_user_id"`
		IsActive    bool   `json:"is_active"`
	}
	decodeInto(t, raw, &med)
	if med.ID == "" || med.OwnerUserID != owner || !med.IsActive {
		t.Fatalf("unexpected medication: %+v", med)
	}

	// Sin grant, el cuidador no ve nada.
	if status, _ = doReq(t, srv, http.MethodGet, "/medications/"+med.ID, carer, nil); status != http.StatusForbidden {
		t.Fatalf("caregiver without grant: expected 403, got %d", status)
	}

	// Owner invita con scopes de lectura + registro.
	status, raw = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/grants", owner, map[string]any{
		"grantee_user_id": carer,
		"scopes":          []string{"meds:read", "logs:read", "logs:create"},
	})
	if status != http.StatusCreated {
		t.Fatalf("invite: expected 201, got %d (%s)", status, raw)
	}
	var grant struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeInto(t, raw, &grant)
	if grant.Status != "invited" {
		t.Fatalf("expected invited grant, got %+v", grant)
	}

	// Invitación pendiente no autoriza todavía.
	if status, _ = doReq(t, srv, http.MethodGet, "/medications/"+med.ID, carer, nil); status != http.StatusForbidden {
		t.Fatalf("pending invite must not authorize: expected 403, got %d", status)
	}

	// Cuidador acepta.
	status, raw = doReq(t, srv, http.MethodPost, "/grants/"+grant.ID+"/accept", carer, nil)
	if status != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%s)", status, raw)
	}
	decodeInto(t, raw, &grant)
	if grant.Status != "active" {
		t.Fatalf("expected active grant, got %+v", grant)
	}

	// Ahora sí: lectura permitida.
	if status, _ = doReq(t, srv, http.MethodGet, "/medications/"+med.ID, carer, nil); status != http.StatusOK {
		t.Fatalf("caregiver read after accept: expected 200, got %d", status)
	}

	// Primera toma: segura, commitea.
	base := "2026-03-10T08:00:00Z"
	status, raw = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/doses", carer, map[string]any{"at": base})
	if status != http.StatusCreated {
		t.Fatalf("first dose: expected 201, got %d (%s)", status, raw)
	}
	var decision struct {
		Committed  bool `json:"committed"`
		Overridden bool `json:"overridden"`
		Log        *struct {
			ID string `json:"id"`
		} `json:"log"`
		Violations []struct {
			Type string `json:"type"`
		} `json:"violations"`
		NextAvailable *time.Time `json:"next_available"`
	}
	decodeInto(t, raw, &decision)
	if !decision.Committed || decision.Log == nil {
		t.Fatalf("expected committed dose with log, got %s", raw)
	}

	// Segunda toma a la hora: rechazada con detalle, sin commit.
	status, raw = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/doses", carer, map[string]any{"at": "2026-03-10T09:00:00Z"})
	if status != http.StatusOK {
		t.Fatalf("violating dose: expected 200, got %d (%s)", status, raw)
	}
	decodeInto(t, raw, &decision)
	if decision.Committed {
		t.Fatalf("violating dose must not commit: %s", raw)
	}
	if len(decision.Violations) != 1 || decision.Violations[0].Type != "min_time_between" {
		t.Fatalf("expected min_time_between violation, got %s", raw)
	}
	wantNext := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if decision.NextAvailable == nil || !decision.NextAvailable.Equal(wantNext) {
		t.Fatalf("expected next available %s, got %v", wantNext, decision.NextAvailable)
	}

	// Chequeo de solo lectura: refleja el mismo estado.
	status, raw = doReq(t, srv, http.MethodGet, "/medications/"+med.ID+"/safety?at=2026-03-10T09:30:00Z", owner, nil)
	if status != http.StatusOK {
		t.Fatalf("safety check: expected 200, got %d (%s)", status, raw)
	}
	var safety struct {
		Safe          bool       `json:"safe"`
		NextAvailable *time.Time `json:"next_available"`
	}
	decodeInto(t, raw, &safety)
	if safety.Safe || safety.NextAvailable == nil || !safety.NextAvailable.Equal(wantNext) {
		t.Fatalf("unexpected safety state: %s", raw)
	}

	// Override explícito: commitea igual y queda marcado.
	status, raw = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/doses/force", carer, map[string]any{"at": "2026-03-10T09:00:00Z"})
	if status != http.StatusCreated {
		t.Fatalf("force dose: expected 201, got %d (%s)", status, raw)
	}
	decodeInto(t, raw, &decision)
	if !decision.Committed || !decision.Overridden {
		t.Fatalf("expected overridden commit, got %s", raw)
	}

	// Revocar corta el acceso de inmediato.
	if status, raw = doReq(t, srv, http.MethodPost, "/grants/"+grant.ID+"/revoke", owner, nil); status != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d (%s)", status, raw)
	}
	if status, _ = doReq(t, srv, http.MethodGet, "/medications/"+med.ID, carer, nil); status != http.StatusForbidden {
		t.Fatalf("revoked caregiver: expected 403, got %d", status)
	}
	if status, _ = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/doses", carer, map[string]any{"at": "2026-03-11T08:00:00Z"}); status != http.StatusForbidden {
		t.Fatalf("revoked caregiver dose: expected 403, got %d", status)
	}
}

func TestHTTP_Schedule_OwnerDay(t *testing.T) {
	srv := httptest.NewServer(router.NewRouter(router.Options{}))
	defer srv.Close()

	const owner = "owner-1"

	status, raw := doReq(t, srv, http.MethodPost, "/medications", owner, map[string]any{
		"name":           "Amoxicilina",
		"frequency":      "twice_daily",
		"schedule_times": []string{"08:00", "20:00"},
	})
	if status != http.StatusCreated {
		t.Fatalf("create medication: expected 201, got %d (%s)", status, raw)
	}
	var med struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &med)

	// Toma de la mañana.
	status, raw = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/doses", owner, map[string]any{"at": "2026-03-10T08:10:00Z"})
	if status != http.StatusCreated {
		t.Fatalf("dose: expected 201, got %d (%s)", status, raw)
	}

	status, raw = doReq(t, srv, http.MethodGet, "/me/schedule?at=2026-03-10T12:00:00Z", owner, nil)
	if status != http.StatusOK {
		t.Fatalf("my schedule: expected 200, got %d (%s)", status, raw)
	}
	var agenda struct {
		Date  string `json:"date"`
		Slots []struct {
			Status string `json:"status"`
		} `json:"slots"`
		Pending []struct {
			MedicationID string `json:"medication_id"`
		} `json:"pending"`
		Overdue    []any `json:"overdue"`
		TakenToday int   `json:"taken_today"`
		HasOverdue bool  `json:"has_overdue"`
	}
	decodeInto(t, raw, &agenda)
	if agenda.Date != "2026-03-10" || len(agenda.Slots) != 2 {
		t.Fatalf("unexpected agenda: %s", raw)
	}
	if agenda.Slots[0].Status != "taken" || agenda.Slots[1].Status != "pending" {
		t.Fatalf("expected taken + pending slots, got %s", raw)
	}
	if agenda.TakenToday != 1 || agenda.HasOverdue || len(agenda.Overdue) != 0 || len(agenda.Pending) != 1 {
		t.Fatalf("unexpected aggregates: %s", raw)
	}
}

func TestHTTP_Invite_RejectsUnknownScope(t *testing.T) {
	srv := httptest.NewServer(router.NewRouter(router.Options{}))
	defer srv.Close()

	status, raw := doReq(t, srv, http.MethodPost, "/medications", "owner-1", map[string]any{
		"name":      "Paracetamol",
		"frequency": "as_needed",
	})
	if status != http.StatusCreated {
		t.Fatalf("create medication: expected 201, got %d (%s)", status, raw)
	}
	var med struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &med)

	status, _ = doReq(t, srv, http.MethodPost, "/medications/"+med.ID+"/grants", "owner-1", map[string]any{
		"grantee_user_id": "carer-1",
		"scopes":          []string{"meds:read", "pets:walk"},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown scope: expected 400, got %d", status)
	}
}

func TestHTTP_Unauthenticated(t *testing.T) {
	srv := httptest.NewServer(router.NewRouter(router.Options{}))
	defer srv.Close()

	if status, _ := doReq(t, srv, http.MethodGet, "/medications", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", status)
	}

	// Health queda abierto.
	if status, _ := doReq(t, srv, http.MethodGet, "/health", "", nil); status != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", status)
	}
}
