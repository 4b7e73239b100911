package provider

import (
	"context"
	"errors"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/oauth2"
)

// oauth2Adapter implements the Adapter contract for the standards-shaped
// providers (authorization-code, optionally with PKCE) on top of
// golang.org/x/oauth2. Provider files supply the endpoints and the JSON
// parsers for their identity and content APIs.
type oauth2Adapter struct {
	name          string
	cfg           *oauth2.Config
	pkce          bool
	refresh       bool
	authOpts      []oauth2.AuthCodeOption
	identityURL   string
	contentURL    func(cursor string) string
	parseIdentity func(body []byte) (*Identity, error)
	parseContent  func(body []byte) (*ContentPage, error)
	http          *req.Client
}

func (a *oauth2Adapter) Name() string          { return a.name }
func (a *oauth2Adapter) SupportsPKCE() bool    { return a.pkce }
func (a *oauth2Adapter) SupportsRefresh() bool { return a.refresh }

// AuthorizationURL builds the provider redirect URL embedding state and,
// for PKCE providers, the S256 challenge.
func (a *oauth2Adapter) AuthorizationURL(state, challenge string) string {
	opts := append([]oauth2.AuthCodeOption{}, a.authOpts...)
	if a.pkce && challenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return a.cfg.AuthCodeURL(state, opts...)
}

// ExchangeCode swaps an authorization code for a credential.
func (a *oauth2Adapter) ExchangeCode(ctx context.Context, code, verifier string) (*Credential, error) {
	var opts []oauth2.AuthCodeOption
	if a.pkce && verifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", verifier))
	}
	tok, err := a.cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, a.wrapTokenError(err)
	}
	return credentialFromToken(tok), nil
}

// RefreshCredential rotates the access token using the refresh secret.
func (a *oauth2Adapter) RefreshCredential(ctx context.Context, refreshToken string) (*Credential, error) {
	if !a.refresh {
		return nil, ErrUnsupported
	}
	ts := a.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, a.wrapTokenError(err)
	}
	cred := credentialFromToken(tok)
	if cred.RefreshToken == "" {
		// Providers may omit the refresh token on rotation; keep the old one.
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// FetchIdentity resolves the external account behind the token.
func (a *oauth2Adapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := a.getJSON(ctx, a.identityURL, accessToken)
	if err != nil {
		return nil, err
	}
	return a.parseIdentity(body)
}

// FetchContentPage loads one page of the user's content.
func (a *oauth2Adapter) FetchContentPage(ctx context.Context, accessToken, cursor string) (*ContentPage, error) {
	body, err := a.getJSON(ctx, a.contentURL(cursor), accessToken)
	if err != nil {
		return nil, err
	}
	return a.parseContent(body)
}

func (a *oauth2Adapter) getJSON(ctx context.Context, url, accessToken string) ([]byte, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		SetBearerAuthToken(accessToken).
		Get(url)
	if err != nil {
		return nil, &ProviderError{Provider: a.name, StatusCode: 0, Body: err.Error()}
	}
	if !resp.IsSuccessState() {
		return nil, &ProviderError{Provider: a.name, StatusCode: resp.StatusCode, Body: resp.String()}
	}
	return resp.Bytes(), nil
}

// wrapTokenError maps x/oauth2 errors onto the ProviderError taxonomy.
func (a *oauth2Adapter) wrapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &ProviderError{Provider: a.name, StatusCode: status, Body: string(re.Body)}
	}
	return &ProviderError{Provider: a.name, StatusCode: 0, Body: err.Error()}
}

func credentialFromToken(tok *oauth2.Token) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		t := tok.Expiry
		cred.ExpiresAt = &t
	}
	return cred
}

func parseUnix(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}
