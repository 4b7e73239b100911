package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Empty(t, reg.Names())

	reg.Register(NewVK(Config{Key: "id", Secret: "secret"}))
	reg.Register(NewTwitter(Config{Key: "id", Secret: "secret"}))

	adapter, ok := reg.Get("vk")
	require.True(t, ok)
	assert.Equal(t, "vk", adapter.Name())

	_, ok = reg.Get("myspace")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"vk", "twitter"}, reg.Names())
}

func TestBuildRegistrySkipsUnconfiguredProviders(t *testing.T) {
	t.Setenv("VK_KEY", "vk-id")
	t.Setenv("VK_SECRET", "vk-secret")
	t.Setenv("GOOGLE_KEY", "")
	t.Setenv("TWITTER_KEY", "")
	t.Setenv("OK_KEY", "")
	t.Setenv("FACEBOOK_KEY", "")
	t.Setenv("INSTAGRAM_KEY", "")
	t.Setenv("PUBLIC_DOMAIN", "https://lifeweave.example")

	reg := BuildRegistry()
	assert.ElementsMatch(t, []string{"vk"}, reg.Names())

	adapter, ok := reg.Get("vk")
	require.True(t, ok)
	authURL := adapter.AuthorizationURL("state123", "")
	assert.Contains(t, authURL, url.QueryEscape("https://lifeweave.example/oauth/vk/callback"))
	assert.Contains(t, authURL, "state=state123")
}

func TestVKExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/access_token", r.URL.Path)
		assert.Equal(t, "the-code", r.URL.Query().Get("code"))
		assert.Equal(t, "vk-id", r.URL.Query().Get("client_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "vk-token",
			"expires_in":   0,
			"user_id":      42,
		})
	}))
	defer srv.Close()

	adapter := NewVK(Config{Key: "vk-id", Secret: "vk-secret", AuthURL: srv.URL})

	cred, err := adapter.ExchangeCode(context.Background(), "the-code", "")
	require.NoError(t, err)
	assert.Equal(t, "vk-token", cred.AccessToken)
	assert.Equal(t, "42", cred.ProviderUserID)
	assert.Empty(t, cred.RefreshToken)
	// expires_in 0 marks the offline token as non-expiring
	assert.Nil(t, cred.ExpiresAt)
}

func TestVKExchangeCodeErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	adapter := NewVK(Config{Key: "vk-id", AuthURL: srv.URL})

	_, err := adapter.ExchangeCode(context.Background(), "bad-code", "")
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "vk", provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
}

func TestVKRefreshUnsupported(t *testing.T) {
	adapter := NewVK(Config{Key: "vk-id"})
	_, err := adapter.RefreshCredential(context.Background(), "whatever")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, adapter.SupportsRefresh())
	assert.False(t, adapter.SupportsPKCE())
}

func TestVKFetchContentPagePagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/method/wall.get", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		offset := r.URL.Query().Get("offset")

		items := []map[string]any{}
		if offset == "0" {
			items = append(items, map[string]any{
				"id":   1,
				"text": "first post",
				"date": 1700000000,
				"likes": map[string]any{
					"count": 3,
				},
				"attachments": []map[string]any{
					{
						"type": "photo",
						"photo": map[string]any{
							"sizes": []map[string]any{
								{"type": "s", "url": "https://cdn.example/small.jpg"},
								{"type": "w", "url": "https://cdn.example/large.jpg"},
							},
						},
					},
				},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"count": 2,
				"items": items,
			},
		})
	}))
	defer srv.Close()

	adapter := NewVK(Config{Key: "vk-id", APIBase: srv.URL})

	page, err := adapter.FetchContentPage(context.Background(), "tok", "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, "1", item.ExternalID)
	assert.Equal(t, "first post", item.Text)
	assert.Equal(t, 3, item.EngagementCount)
	require.NotNil(t, item.PostedAt)
	// the largest photo size wins
	assert.Equal(t, []string{"https://cdn.example/large.jpg"}, item.MediaURLs)
	// one of two items fetched, next page starts after it
	assert.Equal(t, "1", page.NextCursor)

	// the empty second page ends pagination
	page, err = adapter.FetchContentPage(context.Background(), "tok", page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestTwitterAuthorizationURLCarriesPKCEChallenge(t *testing.T) {
	adapter := NewTwitter(Config{Key: "tw-id", Secret: "tw-secret", RedirectURL: "https://lifeweave.example/oauth/twitter/callback"})
	require.True(t, adapter.SupportsPKCE())
	require.True(t, adapter.SupportsRefresh())

	authURL := adapter.AuthorizationURL("state456", "challenge789")
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "state456", parsed.Query().Get("state"))
	assert.Equal(t, "challenge789", parsed.Query().Get("code_challenge"))
	assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
	assert.Contains(t, parsed.Query().Get("scope"), "offline.access")
}

func TestTwitterExchangeAndRefresh(t *testing.T) {
	var sawVerifier string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if v := r.Form.Get("code_verifier"); v != "" {
			sawVerifier = v
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tw-token","refresh_token":"tw-refresh","token_type":"bearer","expires_in":7200}`))
	}))
	defer srv.Close()

	adapter := NewTwitter(Config{Key: "tw-id", Secret: "tw-secret", TokenURL: srv.URL})

	cred, err := adapter.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "the-verifier", sawVerifier)
	assert.Equal(t, "tw-token", cred.AccessToken)
	assert.Equal(t, "tw-refresh", cred.RefreshToken)
	require.NotNil(t, cred.ExpiresAt)

	rotated, err := adapter.RefreshCredential(context.Background(), "tw-refresh")
	require.NoError(t, err)
	assert.Equal(t, "tw-token", rotated.AccessToken)
}

func TestParseTwitterContent(t *testing.T) {
	body := []byte(`{
		"data": [
			{
				"id": "100",
				"text": "hello",
				"created_at": "2023-11-14T12:00:00Z",
				"public_metrics": {"like_count": 2, "retweet_count": 1},
				"attachments": {"media_keys": ["m1", "m2"]}
			}
		],
		"includes": {
			"media": [
				{"media_key": "m1", "type": "photo", "url": "https://pbs.example/one.jpg"},
				{"media_key": "m2", "type": "video", "url": ""}
			]
		},
		"meta": {"next_token": "cursor-2"}
	}`)

	page, err := parseTwitterContent(body)
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", page.NextCursor)
	require.Len(t, page.Items, 1)

	item := page.Items[0]
	assert.Equal(t, "100", item.ExternalID)
	assert.Equal(t, 3, item.EngagementCount)
	require.NotNil(t, item.PostedAt)
	// media without a URL (videos need a separate endpoint) is skipped
	assert.Equal(t, []string{"https://pbs.example/one.jpg"}, item.MediaURLs)
}

func TestParseTwitterIdentityFallsBackToUsername(t *testing.T) {
	identity, err := parseTwitterIdentity([]byte(`{"data":{"id":"7","username":"jdoe"}}`))
	require.NoError(t, err)
	assert.Equal(t, "7", identity.ExternalID)
	assert.Equal(t, "jdoe", identity.DisplayName)
}
