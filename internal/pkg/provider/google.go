package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// NewGoogle builds the Google adapter. Content here is Gmail message
// metadata (ids and dates only, never bodies), which is what biography
// generation needs from a mail account.
func NewGoogle(cfg Config) Adapter {
	endpoint := googleoauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://gmail.googleapis.com"
	}
	identityBase := cfg.APIBase
	if identityBase == "" {
		identityBase = "https://www.googleapis.com"
	}

	return &oauth2Adapter{
		name: "google",
		cfg: &oauth2.Config{
			ClientID:     cfg.Key,
			ClientSecret: cfg.Secret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/gmail.metadata",
			},
			Endpoint: endpoint,
		},
		refresh: true,
		// Google only issues a refresh token for offline access with consent.
		authOpts:    []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")},
		identityURL: identityBase + "/oauth2/v2/userinfo",
		contentURL: func(cursor string) string {
			u := apiBase + "/gmail/v1/users/me/messages?maxResults=100"
			if cursor != "" {
				u += "&pageToken=" + url.QueryEscape(cursor)
			}
			return u
		},
		parseIdentity: parseGoogleIdentity,
		parseContent:  parseGoogleContent,
		http:          newAPIClient(),
	}
}

func parseGoogleIdentity(body []byte) (*Identity, error) {
	var payload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("google identity payload: %w", err)
	}
	return &Identity{ExternalID: payload.ID, DisplayName: payload.Name, Email: payload.Email}, nil
}

func parseGoogleContent(body []byte) (*ContentPage, error) {
	var payload struct {
		Messages []struct {
			ID           string `json:"id"`
			ThreadID     string `json:"threadId"`
			Snippet      string `json:"snippet"`
			InternalDate string `json:"internalDate"`
		} `json:"messages"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("google content payload: %w", err)
	}

	page := &ContentPage{NextCursor: payload.NextPageToken}
	for _, msg := range payload.Messages {
		item := Item{
			ExternalID: msg.ID,
			Kind:       "email",
			Text:       msg.Snippet,
		}
		if msg.InternalDate != "" {
			if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
				item.PostedAt = parseUnix(ms / 1000)
			}
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}
