package caregivers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type InviteInput struct {
	MedicationID  string
	OwnerUserID   string
	GranteeUserID string
	Scopes        []Scope
}

// Invite crea (o actualiza) la invitación de un cuidador sobre un medicamento.
// Re-invitar al mismo cuidador actualiza los scopes del grant vigente en vez
// de acumular duplicados; un grant revocado no revive, se crea uno nuevo.
func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	medID := strings.TrimSpace(in.MedicationID)
	ownerID := strings.TrimSpace(in.OwnerUserID)
	granteeID := strings.TrimSpace(in.GranteeUserID)

	if medID == "" || ownerID == "" || granteeID == "" || ownerID == granteeID {
		return Grant{}, ErrInvalidInput
	}

	scopes, err := normalizeScopes(in.Scopes)
	if err != nil {
		return Grant{}, err
	}

	now := s.now()

	if current, ok, err := s.currentGrantFor(ctx, medID, ownerID, granteeID, now); err != nil {
		return Grant{}, err
	} else if ok {
		current.Scopes = scopes
		current.UpdatedAt = now
		if err := s.repo.Update(ctx, current); err != nil {
			return Grant{}, err
		}
		return current, nil
	}

	g := Grant{
		ID:            uuid.NewString(),
		MedicationID:  medID,
		OwnerUserID:   ownerID,
		GranteeUserID: granteeID,
		Scopes:        scopes,
		Status:        StatusInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Accept activa el grant. Idempotente si ya está activo.
func (s *Service) Accept(ctx context.Context, grantID, granteeUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if grantID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.GranteeUserID != granteeUserID {
		return Grant{}, ErrForbidden
	}
	switch g.Status {
	case StatusActive:
		return g, nil
	case StatusInvited:
		// ok
	default:
		return Grant{}, ErrBadState
	}

	g.Status = StatusActive
	g.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Revoke revoca el grant. Idempotente si ya está revocado.
func (s *Service) Revoke(ctx context.Context, grantID, ownerUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	if grantID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByMedication(ctx context.Context, medicationID string) ([]Grant, error) {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByMedication(ctx, medicationID)
}

func (s *Service) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByGrantee(ctx, granteeUserID)
}

func (s *Service) GetActiveGrant(ctx context.Context, medicationID, granteeUserID string) (Grant, error) {
	medicationID = strings.TrimSpace(medicationID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if medicationID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, medicationID, granteeUserID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// currentGrantFor busca el grant no-revocado más reciente para la tupla
// (medicamento, owner, cuidador) y revoca duplicados viejos si los hubiera.
func (s *Service) currentGrantFor(ctx context.Context, medID, ownerID, granteeID string, now time.Time) (Grant, bool, error) {
	items, err := s.repo.ListByMedication(ctx, medID)
	if err != nil {
		return Grant{}, false, err
	}

	var winner Grant
	found := false
	for _, g := range items {
		if g.OwnerUserID != ownerID || g.GranteeUserID != granteeID || g.Status == StatusRevoked {
			continue
		}
		if !found || g.UpdatedAt.After(winner.UpdatedAt) {
			if found {
				s.revokeQuiet(ctx, winner, now)
			}
			winner = g
			found = true
			continue
		}
		s.revokeQuiet(ctx, g, now)
	}
	return winner, found, nil
}

func (s *Service) revokeQuiet(ctx context.Context, g Grant, now time.Time) {
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	_ = s.repo.Update(ctx, g) // best-effort
}

func normalizeScopes(in []Scope) ([]Scope, error) {
	// Default útil: ver el medicamento y su histórico.
	if len(in) == 0 {
		return []Scope{ScopeMedsRead, ScopeLogsRead}, nil
	}

	allowed := map[Scope]struct{}{
		ScopeMedsRead:   {},
		ScopeMedsEdit:   {},
		ScopeLogsRead:   {},
		ScopeLogsCreate: {},
	}

	seen := map[Scope]struct{}{}
	out := make([]Scope, 0, len(in))
	for _, raw := range in {
		sc := Scope(strings.TrimSpace(string(raw)))
		if sc == "" {
			continue
		}
		if _, ok := allowed[sc]; !ok {
			return nil, ErrInvalidInput
		}
		if _, dup := seen[sc]; dup {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	if len(out) == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}
