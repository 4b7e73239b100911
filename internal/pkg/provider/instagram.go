package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// NewInstagram builds the Instagram adapter: standard authorization-code
// flow against the Basic Display dialect, with rotating refresh tokens.
func NewInstagram(cfg Config) Adapter {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = "https://api.instagram.com/oauth/authorize"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://api.instagram.com/oauth/access_token"
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://graph.instagram.com"
	}

	return &oauth2Adapter{
		name: "instagram",
		cfg: &oauth2.Config{
			ClientID:     cfg.Key,
			ClientSecret: cfg.Secret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"user_profile", "user_media"},
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		refresh:     true,
		identityURL: apiBase + "/me?fields=id,username",
		contentURL: func(cursor string) string {
			u := apiBase + "/me/media?fields=id,caption,media_type,media_url,timestamp,like_count&limit=100"
			if cursor != "" {
				u += "&after=" + url.QueryEscape(cursor)
			}
			return u
		},
		parseIdentity: parseInstagramIdentity,
		parseContent:  parseInstagramContent,
		http:          newAPIClient(),
	}
}

func parseInstagramIdentity(body []byte) (*Identity, error) {
	var payload struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("instagram identity payload: %w", err)
	}
	return &Identity{ExternalID: payload.ID, DisplayName: payload.Username}, nil
}

func parseInstagramContent(body []byte) (*ContentPage, error) {
	var payload struct {
		Data []struct {
			ID        string `json:"id"`
			Caption   string `json:"caption"`
			MediaType string `json:"media_type"`
			MediaURL  string `json:"media_url"`
			Timestamp string `json:"timestamp"`
			LikeCount int    `json:"like_count"`
		} `json:"data"`
		Paging struct {
			Cursors struct {
				After string `json:"after"`
			} `json:"cursors"`
			Next string `json:"next"`
		} `json:"paging"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("instagram content payload: %w", err)
	}

	page := &ContentPage{}
	if payload.Paging.Next != "" {
		page.NextCursor = payload.Paging.Cursors.After
	}
	for _, media := range payload.Data {
		kind := "photo"
		if media.MediaType == "VIDEO" {
			kind = "video"
		}
		item := Item{
			ExternalID:      media.ID,
			Kind:            kind,
			Text:            media.Caption,
			EngagementCount: media.LikeCount,
		}
		if media.Timestamp != "" {
			if t, err := time.Parse("2006-01-02T15:04:05-0700", media.Timestamp); err == nil {
				item.PostedAt = &t
			}
		}
		if media.MediaURL != "" {
			item.MediaURLs = append(item.MediaURLs, media.MediaURL)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}
