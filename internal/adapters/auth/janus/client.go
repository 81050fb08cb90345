package janus

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"med-dose-guard/internal/platform/httpclient"
	"med-dose-guard/internal/ports/auth"
)

var (
	ErrJanusNotConfigured = errors.New("janus client not configured")
)

// Client habla con el servicio de identidad (janus) para verificar tokens.
type Client struct {
	http *httpclient.Client
}

func NewClient(hc *httpclient.Client) *Client {
	return &Client{http: hc}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && strings.TrimSpace(c.http.BaseURL) != ""
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrJanusNotConfigured
	}

	var out verifyResponse
	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/token/verify", nil, verifyRequest{Token: token}, &out)
	if err != nil {
		return auth.Claims{}, err
	}

	return auth.Claims{
		UserID: strings.TrimSpace(out.UserID),
		Email:  strings.TrimSpace(out.Email),
	}, nil
}
