package provider

import (
	"strings"

	"github.com/lifeweave/lifeweave/internal/pkg/env"
)

// Config carries the per-provider settings an adapter constructor needs.
// Key and Secret are the OAuth client credentials; for Odnoklassniki the
// Key additionally carries the application key ("clientID:applicationKey").
// AuthURL, TokenURL and APIBase override the provider defaults, which is
// mainly useful for pointing an adapter at a test server.
type Config struct {
	Key         string
	Secret      string
	RedirectURL string
	AuthURL     string
	TokenURL    string
	APIBase     string
}

// BuildRegistry constructs adapters for every provider that has credentials
// configured and registers them. It is safe to call multiple times; adapters
// are simply re-registered. Providers without a configured key are skipped so
// a deployment can enable any subset.
func BuildRegistry() *Registry {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}

	reg := NewRegistry()

	type constructor func(Config) Adapter
	builders := []struct {
		name string
		make constructor
	}{
		{"vk", NewVK},
		{"ok", NewOK},
		{"twitter", NewTwitter},
		{"google", NewGoogle},
		{"facebook", NewFacebook},
		{"instagram", NewInstagram},
	}

	for _, b := range builders {
		prefix := strings.ToUpper(b.name)
		key := env.GetEnv(prefix+"_KEY", "")
		if key == "" {
			continue
		}
		reg.Register(b.make(Config{
			Key:         key,
			Secret:      env.GetEnv(prefix+"_SECRET", ""),
			RedirectURL: base + "/oauth/" + b.name + "/callback",
		}))
	}

	return reg
}
