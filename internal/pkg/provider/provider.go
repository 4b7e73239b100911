package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imroc/req/v3"
)

// Credential is the normalized result of a code exchange or refresh.
type Credential struct {
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time
	ProviderUserID string // set by providers that return the user id with the token
}

// Identity describes the remote account behind an access token.
type Identity struct {
	ExternalID  string
	DisplayName string
	Email       string
}

// Item is one normalized remote content entry (post, photo, email metadata).
type Item struct {
	ExternalID      string
	Kind            string
	Text            string
	MediaURLs       []string
	PostedAt        *time.Time
	EngagementCount int
}

// ContentPage is one page of a user's content. An empty NextCursor means the
// last page was reached.
type ContentPage struct {
	Items      []Item
	NextCursor string
}

// Adapter is the uniform contract every provider implements. Normalizing the
// six dialects behind it keeps the callback handler, renewal sweep and
// ingestion pipeline free of provider quirks; a seventh provider is a new
// adapter, not an orchestration change.
type Adapter interface {
	Name() string
	// SupportsPKCE reports whether authorization URLs carry a code challenge.
	SupportsPKCE() bool
	// SupportsRefresh reports whether the provider rotates refresh tokens.
	SupportsRefresh() bool
	// AuthorizationURL builds the redirect URL. Pure, no side effects.
	AuthorizationURL(state, challenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*Credential, error)
	RefreshCredential(ctx context.Context, refreshToken string) (*Credential, error)
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
	FetchContentPage(ctx context.Context, accessToken, cursor string) (*ContentPage, error)
}

// ErrUnsupported is returned by RefreshCredential for providers without
// rotating tokens. Callers log it at debug level, it is not an error path.
var ErrUnsupported = errors.New("provider does not support credential refresh")

// ProviderError wraps a non-2xx or malformed response from a provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 200))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// CallTimeout bounds every outbound provider call.
const CallTimeout = 30 * time.Second

// newAPIClient builds the shared HTTP client used for provider API calls.
func newAPIClient() *req.Client {
	return req.C().
		SetTimeout(CallTimeout).
		SetUserAgent("lifeweave/1.0")
}

// Registry holds the configured adapters, keyed by provider name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter; later registrations replace earlier ones.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a provider name
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names lists the registered provider names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
