package caregivers

import "time"

// Scope define qué puede hacer un cuidador sobre un medicamento compartido.
type Scope string

const (
	ScopeMedsRead   Scope = "meds:read"
	ScopeMedsEdit   Scope = "meds:edit"
	ScopeLogsRead   Scope = "logs:read"
	ScopeLogsCreate Scope = "logs:create"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant autoriza a un cuidador (grantee) sobre un medicamento del owner.
type Grant struct {
	ID string

	MedicationID string

	OwnerUserID   string // quien comparte
	GranteeUserID string // cuidador

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// HasScope valida si el grant incluye un scope.
func HasScope(g Grant, scope Scope) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
