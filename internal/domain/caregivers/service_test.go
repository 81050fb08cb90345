package caregivers

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Grant
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Grant{}}
}

func (r *testRepo) Create(ctx context.Context, g Grant) error {
	if g.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[g.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) Update(ctx context.Context, g Grant) error {
	if _, ok := r.byID[g.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Grant, error) {
	g, ok := r.byID[id]
	if !ok {
		return Grant{}, errRepoNotFound
	}
	return g, nil
}

func (r *testRepo) ListByMedication(ctx context.Context, medicationID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.MedicationID == medicationID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	out := make([]Grant, 0)
	for _, g := range r.byID {
		if g.GranteeUserID == granteeUserID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *testRepo) GetActiveGrant(ctx context.Context, medicationID, granteeUserID string) (Grant, error) {
	for _, g := range r.byID {
		if g.MedicationID == medicationID && g.GranteeUserID == granteeUserID && g.Status == StatusActive {
			return g, nil
		}
	}
	return Grant{}, errRepoNotFound
}

// -------------------------
// Tests
// -------------------------

func TestService_Invite_DefaultScopes_WhenEmpty(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
		Scopes:        nil,
	})
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if g.Status != StatusInvited {
		t.Fatalf("expected status invited, got %s", g.Status)
	}
	if g.CreatedAt != now || g.UpdatedAt != now {
		t.Fatalf("expected CreatedAt/UpdatedAt to be now")
	}
	// default: meds:read + logs:read
	if !HasScope(g, ScopeMedsRead) || !HasScope(g, ScopeLogsRead) {
		t.Fatalf("expected default scopes meds:read + logs:read, got %#v", g.Scopes)
	}
}

func TestService_Invite_StrictScopes_RejectsUnknown(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	_, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
		Scopes:        []Scope{ScopeLogsRead, Scope("bad:scope")},
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Invite_RejectsSelfGrant(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	_, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "owner-1",
	})
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for self grant, got %v", err)
	}
}

func TestService_Invite_Dedup_UpdatesSameGrant(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now1 := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	now2 := now1.Add(5 * time.Minute)

	svc.now = func() time.Time { return now1 }
	g1, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
		Scopes:        []Scope{ScopeLogsRead},
	})
	if err != nil {
		t.Fatalf("Invite #1 error: %v", err)
	}

	svc.now = func() time.Time { return now2 }
	g2, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
		Scopes:        []Scope{ScopeLogsRead, ScopeLogsCreate},
	})
	if err != nil {
		t.Fatalf("Invite #2 error: %v", err)
	}

	if g2.ID != g1.ID {
		t.Fatalf("expected same grant ID (dedup), got %s vs %s", g1.ID, g2.ID)
	}
	if g2.UpdatedAt != now2 {
		t.Fatalf("expected UpdatedAt to change on reinvite")
	}
	if !HasScope(g2, ScopeLogsCreate) || !HasScope(g2, ScopeLogsRead) {
		t.Fatalf("expected scopes updated, got %#v", g2.Scopes)
	}
}

func TestService_Accept_SetsActive_AndIdempotent(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})
	if err != nil {
		t.Fatalf("Invite error: %v", err)
	}

	accepted, err := svc.Accept(context.Background(), g.ID, "carer-1")
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if accepted.Status != StatusActive {
		t.Fatalf("expected active, got %s", accepted.Status)
	}

	// idempotente
	accepted2, err := svc.Accept(context.Background(), g.ID, "carer-1")
	if err != nil || accepted2.Status != StatusActive {
		t.Fatalf("expected idempotent accept, got %+v err=%v", accepted2, err)
	}
}

func TestService_Accept_OnlyGrantee(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g, _ := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})

	if _, err := svc.Accept(context.Background(), g.ID, "intruder"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Revoke_OwnerOnly_AndIdempotent(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	g, _ := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})
	if _, err := svc.Accept(context.Background(), g.ID, "carer-1"); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	if _, err := svc.Revoke(context.Background(), g.ID, "carer-1"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for non-owner revoke, got %v", err)
	}

	revoked, err := svc.Revoke(context.Background(), g.ID, "owner-1")
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked.Status != StatusRevoked || revoked.RevokedAt == nil {
		t.Fatalf("expected revoked with timestamp, got %+v", revoked)
	}

	// idempotente
	revoked2, err := svc.Revoke(context.Background(), g.ID, "owner-1")
	if err != nil || revoked2.Status != StatusRevoked {
		t.Fatalf("expected idempotent revoke, got %+v err=%v", revoked2, err)
	}
}

func TestService_Accept_RevokedDoesNotRevive(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g, _ := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})
	if _, err := svc.Revoke(context.Background(), g.ID, "owner-1"); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	if _, err := svc.Accept(context.Background(), g.ID, "carer-1"); err != ErrBadState {
		t.Fatalf("expected ErrBadState accepting a revoked grant, got %v", err)
	}
}

func TestService_Invite_AfterRevoke_CreatesNewGrant(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	g1, _ := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})
	if _, err := svc.Revoke(context.Background(), g1.ID, "owner-1"); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	g2, err := svc.Invite(context.Background(), InviteInput{
		MedicationID:  "med-1",
		OwnerUserID:   "owner-1",
		GranteeUserID: "carer-1",
	})
	if err != nil {
		t.Fatalf("Invite error: %v", err)
	}
	if g2.ID == g1.ID {
		t.Fatalf("revoked grant must not revive: expected a fresh grant")
	}
	if g2.Status != StatusInvited {
		t.Fatalf("expected invited, got %s", g2.Status)
	}
}
