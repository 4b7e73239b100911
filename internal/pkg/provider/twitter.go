package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// NewTwitter builds the Twitter adapter: authorization-code + PKCE with a
// rotating refresh token. The offline.access scope is what makes Twitter
// issue refresh tokens at all.
func NewTwitter(cfg Config) Adapter {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = "https://twitter.com/i/oauth2/authorize"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://api.twitter.com/2/oauth2/token"
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.twitter.com"
	}

	return &oauth2Adapter{
		name: "twitter",
		cfg: &oauth2.Config{
			ClientID:     cfg.Key,
			ClientSecret: cfg.Secret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"tweet.read", "users.read", "offline.access"},
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		pkce:        true,
		refresh:     true,
		identityURL: apiBase + "/2/users/me",
		contentURL: func(cursor string) string {
			u := apiBase + "/2/users/me/tweets?max_results=100&tweet.fields=created_at,public_metrics&expansions=attachments.media_keys&media.fields=url,type"
			if cursor != "" {
				u += "&pagination_token=" + url.QueryEscape(cursor)
			}
			return u
		},
		parseIdentity: parseTwitterIdentity,
		parseContent:  parseTwitterContent,
		http:          newAPIClient(),
	}
}

func parseTwitterIdentity(body []byte) (*Identity, error) {
	var payload struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("twitter identity payload: %w", err)
	}
	name := payload.Data.Name
	if name == "" {
		name = payload.Data.Username
	}
	return &Identity{ExternalID: payload.Data.ID, DisplayName: name}, nil
}

func parseTwitterContent(body []byte) (*ContentPage, error) {
	var payload struct {
		Data []struct {
			ID            string    `json:"id"`
			Text          string    `json:"text"`
			CreatedAt     time.Time `json:"created_at"`
			PublicMetrics struct {
				LikeCount    int `json:"like_count"`
				RetweetCount int `json:"retweet_count"`
			} `json:"public_metrics"`
			Attachments struct {
				MediaKeys []string `json:"media_keys"`
			} `json:"attachments"`
		} `json:"data"`
		Includes struct {
			Media []struct {
				MediaKey string `json:"media_key"`
				Type     string `json:"type"`
				URL      string `json:"url"`
			} `json:"media"`
		} `json:"includes"`
		Meta struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("twitter content payload: %w", err)
	}

	mediaByKey := make(map[string]string, len(payload.Includes.Media))
	for _, m := range payload.Includes.Media {
		if m.URL != "" {
			mediaByKey[m.MediaKey] = m.URL
		}
	}

	page := &ContentPage{NextCursor: payload.Meta.NextToken}
	for _, tweet := range payload.Data {
		item := Item{
			ExternalID:      tweet.ID,
			Kind:            "post",
			Text:            tweet.Text,
			EngagementCount: tweet.PublicMetrics.LikeCount + tweet.PublicMetrics.RetweetCount,
		}
		if !tweet.CreatedAt.IsZero() {
			t := tweet.CreatedAt
			item.PostedAt = &t
		}
		for _, key := range tweet.Attachments.MediaKeys {
			if u, ok := mediaByKey[key]; ok {
				item.MediaURLs = append(item.MediaURLs, u)
			}
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}
