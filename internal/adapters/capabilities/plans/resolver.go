package plans

import (
	"context"
	"errors"
	"os"
	"strings"

	"med-dose-guard/internal/ports/capabilities"
)

// Resolver implementa capabilities.Resolver contra plans-features.
type Resolver struct {
	client   *Client
	allowAll bool
}

// NewResolver crea un resolver.
// Si ALLOW_ALL_CAPABILITIES=true (env), todo devuelve true (modo dev / fallback).
func NewResolver(client *Client) *Resolver {
	allowAll := strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_ALL_CAPABILITIES")), "true")
	return &Resolver{
		client:   client,
		allowAll: allowAll,
	}
}

func (r *Resolver) Has(ctx context.Context, in capabilities.Check) (bool, error) {
	if strings.TrimSpace(in.Capability) == "" {
		return false, errors.New("capability required")
	}
	if r.allowAll {
		return true, nil
	}
	if r == nil || r.client == nil || !r.client.IsConfigured() {
		// Preferimos fallar explícito en vez de "permitir" sin control.
		return false, ErrPlansNotConfigured
	}

	caps, err := r.client.GetCapabilities(ctx, in.UserID)
	if err != nil {
		return false, err
	}
	return caps[in.Capability], nil
}
