package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/imroc/req/v3"
)

// okAdapter implements the OK (Odnoklassniki) dialect: a public application
// key travels with every API call, requests are signed with an md5 digest
// over the sorted parameters, there is no PKCE and no rotating refresh.
type okAdapter struct {
	clientID     string
	publicKey    string
	clientSecret string
	redirectURL  string
	authBase     string
	apiBase      string
	http         *req.Client
}

// NewOK builds the OK adapter. cfg.Key carries "clientID:applicationKey".
func NewOK(cfg Config) Adapter {
	clientID, publicKey := cfg.Key, ""
	if i := strings.IndexByte(cfg.Key, ':'); i >= 0 {
		clientID, publicKey = cfg.Key[:i], cfg.Key[i+1:]
	}
	authBase := cfg.AuthURL
	if authBase == "" {
		authBase = "https://connect.ok.ru"
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.ok.ru"
	}
	return &okAdapter{
		clientID:     clientID,
		publicKey:    publicKey,
		clientSecret: cfg.Secret,
		redirectURL:  cfg.RedirectURL,
		authBase:     authBase,
		apiBase:      apiBase,
		http:         newAPIClient(),
	}
}

func (a *okAdapter) Name() string          { return "ok" }
func (a *okAdapter) SupportsPKCE() bool    { return false }
func (a *okAdapter) SupportsRefresh() bool { return false }

func (a *okAdapter) AuthorizationURL(state, _ string) string {
	q := url.Values{}
	q.Set("client_id", a.clientID)
	q.Set("scope", "VALUABLE_ACCESS;PHOTO_CONTENT")
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.redirectURL)
	q.Set("state", state)
	return a.authBase + "/oauth/authorize?" + q.Encode()
}

func (a *okAdapter) ExchangeCode(ctx context.Context, code, _ string) (*Credential, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"code":          code,
			"client_id":     a.clientID,
			"client_secret": a.clientSecret,
			"redirect_uri":  a.redirectURL,
			"grant_type":    "authorization_code",
		}).
		Post(a.apiBase + "/oauth/token.do")
	if err != nil {
		return nil, &ProviderError{Provider: "ok", StatusCode: 0, Body: err.Error()}
	}
	if !resp.IsSuccessState() {
		return nil, &ProviderError{Provider: "ok", StatusCode: resp.StatusCode, Body: resp.String()}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Bytes(), &payload); err != nil {
		return nil, &ProviderError{Provider: "ok", StatusCode: resp.StatusCode, Body: resp.String()}
	}

	cred := &Credential{AccessToken: payload.AccessToken}
	if payload.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		cred.ExpiresAt = &t
	}
	return cred, nil
}

func (a *okAdapter) RefreshCredential(_ context.Context, _ string) (*Credential, error) {
	return nil, ErrUnsupported
}

func (a *okAdapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := a.callMethod(ctx, accessToken, map[string]string{
		"method": "users.getCurrentUser",
		"fields": "uid,name,email",
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		UID   string `json:"uid"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProviderError{Provider: "ok", StatusCode: 200, Body: string(body)}
	}
	return &Identity{ExternalID: payload.UID, DisplayName: payload.Name, Email: payload.Email}, nil
}

func (a *okAdapter) FetchContentPage(ctx context.Context, accessToken, cursor string) (*ContentPage, error) {
	params := map[string]string{
		"method": "photosV2.getPhotos",
		"count":  "100",
	}
	if cursor != "" {
		params["anchor"] = cursor
	}
	body, err := a.callMethod(ctx, accessToken, params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Photos []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			PicMax    string `json:"pic_max"`
			CreatedMs int64  `json:"created_ms"`
			LikeCount int    `json:"like_count"`
		} `json:"photos"`
		Anchor  string `json:"anchor"`
		HasMore bool   `json:"hasMore"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProviderError{Provider: "ok", StatusCode: 200, Body: string(body)}
	}

	page := &ContentPage{}
	if payload.HasMore {
		page.NextCursor = payload.Anchor
	}
	for _, photo := range payload.Photos {
		item := Item{
			ExternalID:      photo.ID,
			Kind:            "photo",
			Text:            photo.Text,
			PostedAt:        parseUnix(photo.CreatedMs / 1000),
			EngagementCount: photo.LikeCount,
		}
		if photo.PicMax != "" {
			item.MediaURLs = append(item.MediaURLs, photo.PicMax)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// callMethod performs a signed OK API call. The signature is
// md5(sortedParams + md5(accessToken + clientSecret)) per the OK scheme;
// access_token itself is excluded from the signed parameter string.
func (a *okAdapter) callMethod(ctx context.Context, accessToken string, params map[string]string) ([]byte, error) {
	all := map[string]string{
		"application_key": a.publicKey,
		"format":          "json",
	}
	for k, v := range params {
		all[k] = v
	}
	all["sig"] = a.sign(accessToken, all)
	all["access_token"] = accessToken

	r := a.http.R().SetContext(ctx)
	for k, v := range all {
		r.SetQueryParam(k, v)
	}
	resp, err := r.Get(a.apiBase + "/fb.do")
	if err != nil {
		return nil, &ProviderError{Provider: "ok", StatusCode: 0, Body: err.Error()}
	}
	if !resp.IsSuccessState() {
		return nil, &ProviderError{Provider: "ok", StatusCode: resp.StatusCode, Body: resp.String()}
	}
	return resp.Bytes(), nil
}

func (a *okAdapter) sign(accessToken string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	sessionSecret := md5.Sum([]byte(accessToken + a.clientSecret))
	sum := md5.Sum([]byte(b.String() + hex.EncodeToString(sessionSecret[:])))
	return hex.EncodeToString(sum[:])
}
