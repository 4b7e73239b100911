package models

import (
	"time"

	"gorm.io/gorm"
)

// Supported providers. VK and OK use a public-key style exchange without
// PKCE, Twitter uses authorization-code + PKCE, the rest are standard
// authorization-code flows with rotating refresh tokens.
const (
	ProviderVK        = "vk"
	ProviderOK        = "ok"
	ProviderTwitter   = "twitter"
	ProviderGoogle    = "google"
	ProviderFacebook  = "facebook"
	ProviderInstagram = "instagram"
)

// AllProviders lists every provider the handshake manager accepts.
var AllProviders = []string{
	ProviderVK, ProviderOK, ProviderTwitter,
	ProviderGoogle, ProviderFacebook, ProviderInstagram,
}

// IsKnownProvider reports whether name is one of the six supported providers.
func IsKnownProvider(name string) bool {
	for _, p := range AllProviders {
		if p == name {
			return true
		}
	}
	return false
}

// LinkedAccount stores external OAuth provider credentials linked to a user.
// At most one row exists per (user, provider); callbacks upsert and the
// renewal sweep rotates the token columns. Rows are never deleted
// automatically, only by explicit user action.
type LinkedAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index:user_provider,unique" json:"user_id"`
	Provider       string     `gorm:"index:user_provider,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string     `gorm:"index;type:varchar(191)" json:"provider_user_id"`
	DisplayName    string     `gorm:"type:varchar(191)" json:"display_name"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	ItemsIngested  int64      `gorm:"default:0" json:"items_ingested"`
	MediaEnqueued  int64      `gorm:"default:0" json:"media_enqueued"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasRefreshToken reports whether the account carries a rotating refresh
// secret. VK and OK issue long-lived access tokens without one.
func (a *LinkedAccount) HasRefreshToken() bool {
	return a.RefreshToken != ""
}

// ExpiresWithin reports whether the credential expires inside the window.
// Accounts without an expiry never report true.
func (a *LinkedAccount) ExpiresWithin(window time.Duration) bool {
	if a.ExpiresAt == nil {
		return false
	}
	return a.ExpiresAt.Before(time.Now().Add(window))
}

// FindLinkedAccountByUserAndProvider loads the single account for a (user, provider) pair.
func FindLinkedAccountByUserAndProvider(db *gorm.DB, userID uint, provider string) (*LinkedAccount, error) {
	var account LinkedAccount
	result := db.Where("user_id = ? AND provider = ?", userID, provider).First(&account)
	return &account, result.Error
}
