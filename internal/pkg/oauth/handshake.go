package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lifeweave/lifeweave/internal/pkg/cache"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
)

const (
	// StateTTL bounds how long a pending authorization may stay open.
	StateTTL = 10 * time.Minute

	stateKeyPrefix = "pkce:"
)

// ErrStateNotFound is returned by Complete when the state parameter does not
// match a pending authorization. This covers expired, replayed and forged
// callbacks alike.
var ErrStateNotFound = errors.New("oauth: authorization state not found")

// AuthorizationState is the record persisted between Begin and Complete.
type AuthorizationState struct {
	UserID       uint   `json:"user_id"`
	Provider     string `json:"provider"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// StateStore persists pending authorization states. Take must consume the
// record atomically so that a state can never be redeemed twice.
type StateStore interface {
	Save(state string, rec AuthorizationState, ttl time.Duration) error
	Take(state string) (AuthorizationState, error)
}

// RedisStateStore keeps pending states in the shared cache. Take uses GETDEL
// so concurrent callbacks with the same state resolve to exactly one winner.
type RedisStateStore struct{}

func (RedisStateStore) Save(state string, rec AuthorizationState, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal authorization state: %w", err)
	}
	return cache.Set(stateKeyPrefix+state, raw, ttl)
}

func (RedisStateStore) Take(state string) (AuthorizationState, error) {
	raw, err := cache.GetDel(stateKeyPrefix + state)
	if err != nil {
		if cache.IsMiss(err) {
			return AuthorizationState{}, ErrStateNotFound
		}
		return AuthorizationState{}, fmt.Errorf("read authorization state: %w", err)
	}
	var rec AuthorizationState
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return AuthorizationState{}, fmt.Errorf("decode authorization state: %w", err)
	}
	return rec, nil
}

// Handshake drives the two-legged authorization flow against a provider
// registry. It owns state generation and PKCE material; adapters only see
// the finished parameters.
type Handshake struct {
	registry *provider.Registry
	states   StateStore
}

func NewHandshake(registry *provider.Registry, states StateStore) *Handshake {
	return &Handshake{registry: registry, states: states}
}

// Begin starts an authorization for the given user and provider and returns
// the URL the user must be redirected to.
func (h *Handshake) Begin(userID uint, providerName string) (string, error) {
	adapter, ok := h.registry.Get(providerName)
	if !ok {
		return "", fmt.Errorf("oauth: unknown provider %q", providerName)
	}

	state, err := randomToken()
	if err != nil {
		return "", err
	}

	rec := AuthorizationState{
		UserID:    userID,
		Provider:  providerName,
		CreatedAt: time.Now().Unix(),
	}

	var challenge string
	if adapter.SupportsPKCE() {
		verifier, err := randomToken()
		if err != nil {
			return "", err
		}
		rec.CodeVerifier = verifier
		challenge = codeChallengeS256(verifier)
	}

	if err := h.states.Save(state, rec, StateTTL); err != nil {
		return "", err
	}

	return adapter.AuthorizationURL(state, challenge), nil
}

// Complete redeems a callback. The state is consumed even when the exchange
// fails, so a retried callback always starts from Begin again.
func (h *Handshake) Complete(ctx context.Context, state, code string) (AuthorizationState, *provider.Credential, error) {
	rec, err := h.states.Take(state)
	if err != nil {
		return AuthorizationState{}, nil, err
	}

	adapter, ok := h.registry.Get(rec.Provider)
	if !ok {
		return rec, nil, fmt.Errorf("oauth: provider %q no longer registered", rec.Provider)
	}

	cred, err := adapter.ExchangeCode(ctx, code, rec.CodeVerifier)
	if err != nil {
		return rec, nil, err
	}
	return rec, cred, nil
}

// randomToken returns 32 bytes of entropy, base64url encoded without padding.
// The same shape serves as state parameter and PKCE verifier.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
