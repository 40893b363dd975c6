package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// requestTimeout bounds every outbound call to Google so a hung provider
// surfaces as an error instead of blocking the request.
const requestTimeout = 10 * time.Second

// ErrNoIDToken is returned when the code exchange succeeds but the token
// response carries no id_token.
var ErrNoIDToken = errors.New("token response missing id_token")

// Identity is the subset of Google ID-token claims the session layer needs.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleBroker performs the outbound Google calls. It is constructed once at
// startup and injected into its consumers; a nil broker means Google OAuth
// is not configured.
type GoogleBroker interface {
	// AuthCodeURL builds the consent-screen URL carrying the opaque state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the raw id_token.
	Exchange(ctx context.Context, code string) (string, error)
	// VerifyIDToken checks signature and audience against Google's published
	// keys and extracts the identity claims.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error)
}

type googleBroker struct {
	conf     *oauth2.Config
	audience string
}

// NewGoogleBroker creates a broker for the given OAuth client.
func NewGoogleBroker(clientID, clientSecret, redirectURL string) GoogleBroker {
	return &googleBroker{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		audience: clientID,
	}
}

func (b *googleBroker) AuthCodeURL(state string) string {
	return b.conf.AuthCodeURL(state)
}

func (b *googleBroker) Exchange(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	token, err := b.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange authorization code: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", ErrNoIDToken
	}
	return raw, nil
}

func (b *googleBroker) VerifyIDToken(ctx context.Context, rawIDToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	payload, err := idtoken.Validate(ctx, rawIDToken, b.audience)
	if err != nil {
		return nil, fmt.Errorf("validate id token: %w", err)
	}

	id := &Identity{Subject: payload.Subject}
	if v, ok := payload.Claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := payload.Claims["email_verified"].(bool); ok {
		id.EmailVerified = v
	}
	if v, ok := payload.Claims["name"].(string); ok {
		id.Name = v
	}
	if v, ok := payload.Claims["picture"].(string); ok {
		id.Picture = v
	}
	return id, nil
}
