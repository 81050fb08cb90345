package janus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"med-dose-guard/internal/ports/auth"
)

var (
	ErrTokenEmpty = errors.New("token is empty")
)

// Verifier implementa auth.AuthVerifier usando janus.
type Verifier struct {
	client *Client
}

func NewVerifier(client *Client) *Verifier {
	return &Verifier{client: client}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrJanusNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	claims, err := v.client.VerifyToken(ctx, token)
	if err != nil {
		// Normalizamos un poco; el middleware ya decide si corta o no.
		return auth.Claims{}, fmt.Errorf("janus verify failed: %w", err)
	}

	if claims.UserID == "" {
		return auth.Claims{}, errors.New("janus claims missing user id")
	}
	return claims, nil
}
