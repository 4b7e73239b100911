package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
)

const vkAPIVersion = "5.131"

// vkAdapter implements the VK dialect: the code exchange is a plain GET
// against the OAuth host with the client secret in the query string, no
// PKCE, and no rotating refresh token (the offline scope makes the access
// token non-expiring instead).
type vkAdapter struct {
	clientID     string
	clientSecret string
	redirectURL  string
	authBase     string
	apiBase      string
	http         *req.Client
}

// NewVK builds the VK adapter.
func NewVK(cfg Config) Adapter {
	authBase := cfg.AuthURL
	if authBase == "" {
		authBase = "https://oauth.vk.com"
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.vk.com"
	}
	return &vkAdapter{
		clientID:     cfg.Key,
		clientSecret: cfg.Secret,
		redirectURL:  cfg.RedirectURL,
		authBase:     authBase,
		apiBase:      apiBase,
		http:         newAPIClient(),
	}
}

func (a *vkAdapter) Name() string          { return "vk" }
func (a *vkAdapter) SupportsPKCE() bool    { return false }
func (a *vkAdapter) SupportsRefresh() bool { return false }

func (a *vkAdapter) AuthorizationURL(state, _ string) string {
	q := url.Values{}
	q.Set("client_id", a.clientID)
	q.Set("redirect_uri", a.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "wall,photos,offline")
	q.Set("state", state)
	q.Set("v", vkAPIVersion)
	return a.authBase + "/authorize?" + q.Encode()
}

func (a *vkAdapter) ExchangeCode(ctx context.Context, code, _ string) (*Credential, error) {
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client_id":     a.clientID,
			"client_secret": a.clientSecret,
			"redirect_uri":  a.redirectURL,
			"code":          code,
		}).
		Get(a.authBase + "/access_token")
	if err != nil {
		return nil, &ProviderError{Provider: "vk", StatusCode: 0, Body: err.Error()}
	}
	if !resp.IsSuccessState() {
		return nil, &ProviderError{Provider: "vk", StatusCode: resp.StatusCode, Body: resp.String()}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		UserID      int64  `json:"user_id"`
		Email       string `json:"email"`
	}
	if err := json.Unmarshal(resp.Bytes(), &payload); err != nil {
		return nil, &ProviderError{Provider: "vk", StatusCode: resp.StatusCode, Body: resp.String()}
	}

	cred := &Credential{
		AccessToken:    payload.AccessToken,
		ProviderUserID: strconv.FormatInt(payload.UserID, 10),
	}
	// expires_in 0 means the offline token never expires.
	if payload.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		cred.ExpiresAt = &t
	}
	return cred, nil
}

func (a *vkAdapter) RefreshCredential(_ context.Context, _ string) (*Credential, error) {
	return nil, ErrUnsupported
}

func (a *vkAdapter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := a.callMethod(ctx, "users.get", accessToken, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Response []struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Response) == 0 {
		return nil, &ProviderError{Provider: "vk", StatusCode: 200, Body: string(body)}
	}
	u := payload.Response[0]
	return &Identity{
		ExternalID:  strconv.FormatInt(u.ID, 10),
		DisplayName: u.FirstName + " " + u.LastName,
	}, nil
}

func (a *vkAdapter) FetchContentPage(ctx context.Context, accessToken, cursor string) (*ContentPage, error) {
	offset := 0
	if cursor != "" {
		if v, err := strconv.Atoi(cursor); err == nil {
			offset = v
		}
	}
	body, err := a.callMethod(ctx, "wall.get", accessToken, map[string]string{
		"count":  "100",
		"offset": strconv.Itoa(offset),
		"filter": "owner",
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Response struct {
			Count int `json:"count"`
			Items []struct {
				ID    int64  `json:"id"`
				Text  string `json:"text"`
				Date  int64  `json:"date"`
				Likes struct {
					Count int `json:"count"`
				} `json:"likes"`
				Attachments []struct {
					Type  string `json:"type"`
					Photo struct {
						Sizes []struct {
							Type   string `json:"type"`
							URL    string `json:"url"`
							Width  int    `json:"width"`
							Height int    `json:"height"`
						} `json:"sizes"`
					} `json:"photo"`
				} `json:"attachments"`
			} `json:"items"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProviderError{Provider: "vk", StatusCode: 200, Body: string(body)}
	}

	page := &ContentPage{}
	for _, post := range payload.Response.Items {
		item := Item{
			ExternalID:      strconv.FormatInt(post.ID, 10),
			Kind:            "post",
			Text:            post.Text,
			PostedAt:        parseUnix(post.Date),
			EngagementCount: post.Likes.Count,
		}
		for _, att := range post.Attachments {
			if att.Type != "photo" {
				continue
			}
			// The largest size is the last entry VK returns.
			if n := len(att.Photo.Sizes); n > 0 {
				item.MediaURLs = append(item.MediaURLs, att.Photo.Sizes[n-1].URL)
			}
		}
		page.Items = append(page.Items, item)
	}
	next := offset + len(payload.Response.Items)
	if len(payload.Response.Items) > 0 && next < payload.Response.Count {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}

func (a *vkAdapter) callMethod(ctx context.Context, method, accessToken string, params map[string]string) ([]byte, error) {
	r := a.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", accessToken).
		SetQueryParam("v", vkAPIVersion)
	for k, v := range params {
		r.SetQueryParam(k, v)
	}
	resp, err := r.Get(fmt.Sprintf("%s/method/%s", a.apiBase, method))
	if err != nil {
		return nil, &ProviderError{Provider: "vk", StatusCode: 0, Body: err.Error()}
	}
	if !resp.IsSuccessState() {
		return nil, &ProviderError{Provider: "vk", StatusCode: resp.StatusCode, Body: resp.String()}
	}
	return resp.Bytes(), nil
}
