package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"
)

// NewFacebook builds the Facebook adapter: standard authorization-code flow
// with rotating long-lived tokens.
func NewFacebook(cfg Config) Adapter {
	endpoint := fboauth.Endpoint
	if cfg.AuthURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://graph.facebook.com/v19.0"
	}

	return &oauth2Adapter{
		name: "facebook",
		cfg: &oauth2.Config{
			ClientID:     cfg.Key,
			ClientSecret: cfg.Secret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"public_profile", "email", "user_posts"},
			Endpoint:     endpoint,
		},
		refresh:     true,
		identityURL: apiBase + "/me?fields=id,name,email",
		contentURL: func(cursor string) string {
			u := apiBase + "/me/posts?fields=id,message,created_time,full_picture,likes.summary(true)&limit=100"
			if cursor != "" {
				u += "&after=" + url.QueryEscape(cursor)
			}
			return u
		},
		parseIdentity: parseFacebookIdentity,
		parseContent:  parseFacebookContent,
		http:          newAPIClient(),
	}
}

func parseFacebookIdentity(body []byte) (*Identity, error) {
	var payload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("facebook identity payload: %w", err)
	}
	return &Identity{ExternalID: payload.ID, DisplayName: payload.Name, Email: payload.Email}, nil
}

func parseFacebookContent(body []byte) (*ContentPage, error) {
	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			Message     string `json:"message"`
			CreatedTime string `json:"created_time"`
			FullPicture string `json:"full_picture"`
			Likes       struct {
				Summary struct {
					TotalCount int `json:"total_count"`
				} `json:"summary"`
			} `json:"likes"`
		} `json:"data"`
		Paging struct {
			Cursors struct {
				After string `json:"after"`
			} `json:"cursors"`
			Next string `json:"next"`
		} `json:"paging"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("facebook content payload: %w", err)
	}

	page := &ContentPage{}
	// The "after" cursor is only meaningful while a next link exists.
	if payload.Paging.Next != "" {
		page.NextCursor = payload.Paging.Cursors.After
	}
	for _, post := range payload.Data {
		item := Item{
			ExternalID:      post.ID,
			Kind:            "post",
			Text:            post.Message,
			EngagementCount: post.Likes.Summary.TotalCount,
		}
		if post.CreatedTime != "" {
			if t, err := time.Parse("2006-01-02T15:04:05-0700", post.CreatedTime); err == nil {
				item.PostedAt = &t
			}
		}
		if post.FullPicture != "" {
			item.MediaURLs = append(item.MediaURLs, post.FullPicture)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}
