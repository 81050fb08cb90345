package capabilities

import "context"

// Check identifica la pregunta: ¿userID tiene la capability?
type Check struct {
	UserID     string
	Capability string
}

// Resolver responde capabilities de plan (free/premium) para un usuario.
type Resolver interface {
	Has(ctx context.Context, in Check) (bool, error)
}
