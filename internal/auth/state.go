package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"storefront/internal/cache"
)

// StateCookieTTL bounds how long an OAuth round trip may take.
const StateCookieTTL = 10 * time.Minute

const nonceKeyPrefix = "oauth_nonce:"

// State carries the OAuth redirect target and CSRF nonce through the
// provider round trip as the opaque `state` query parameter.
type State struct {
	RedirectTo string `json:"r"`
	Nonce      string `json:"c"`
}

// EncodeState serializes the state as URL-safe base64 JSON.
func EncodeState(s State) string {
	payload, _ := json.Marshal(s)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeState reverses EncodeState. A state without a nonce is malformed.
func DecodeState(raw string) (State, error) {
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return State{}, errors.New("invalid state encoding")
	}
	var s State
	if err := json.Unmarshal(payload, &s); err != nil {
		return State{}, errors.New("invalid state payload")
	}
	if s.Nonce == "" {
		return State{}, errors.New("state missing nonce")
	}
	return s, nil
}

// NewNonce returns a fresh CSRF nonce.
func NewNonce() string {
	return uuid.NewString()
}

// NonceStore records consumed OAuth nonces so a callback cannot be replayed
// even when the browser re-sends the state cookie. It rides on the fail-safe
// cache: when redis is down consumption degrades to the cookie check alone.
type NonceStore struct {
	cache *cache.Client
}

// NewNonceStore creates a nonce store on top of the shared cache client.
func NewNonceStore(c *cache.Client) *NonceStore {
	return &NonceStore{cache: c}
}

// Consume marks the nonce used and reports whether this was its first use.
func (s *NonceStore) Consume(ctx context.Context, nonce string) bool {
	if s == nil {
		return true
	}
	first, _ := s.cache.SetNX(ctx, nonceKeyPrefix+nonce, []byte("1"), StateCookieTTL)
	return first
}
