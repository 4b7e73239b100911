package repository

import (
	"time"

	"github.com/lifeweave/lifeweave/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

// LinkedAccountRepository defines the interface for OAuth credential records.
// At most one row exists per (user, provider).
type LinkedAccountRepository interface {
	Upsert(account *models.LinkedAccount) error
	GetByID(id uint) (*models.LinkedAccount, error)
	GetByUserAndProvider(userID uint, provider string) (*models.LinkedAccount, error)
	ListByUserID(userID uint) ([]models.LinkedAccount, error)
	// ListExpiring returns accounts whose credential expires inside the
	// window and which carry a refresh token.
	ListExpiring(window time.Duration) ([]models.LinkedAccount, error)
	UpdateTokens(id uint, accessToken, refreshToken string, expiresAt *time.Time) error
	Delete(id uint) error
}

// ContentItemRepository defines the interface for ingested content records
type ContentItemRepository interface {
	// Upsert creates the item or, when (provider, provider_item_id) already
	// exists, updates the mutable columns of the existing row. The returned
	// item always carries the persisted ID.
	Upsert(item *models.ContentItem) (*models.ContentItem, error)
	GetByID(id uint) (*models.ContentItem, error)
	ListByUserID(userID uint) ([]models.ContentItem, error)
	SetMediaAsset(itemID, assetID uint) error
	DeleteByIDs(ids []uint) (int64, error)
	CountByUserID(userID uint) (int64, error)
}

// MediaAssetRepository defines the interface for content-addressed media rows
type MediaAssetRepository interface {
	Create(asset *models.MediaAsset) error
	GetByID(id uint) (*models.MediaAsset, error)
	GetByContentHash(hash string) (*models.MediaAsset, error)
	ListUnoptimizedForUser(userID uint) ([]models.MediaAsset, error)
	ListCreatedSince(since time.Time) ([]models.MediaAsset, error)
	ListAll() ([]models.MediaAsset, error)
	MarkOptimized(id uint) error
}

// Repositories bundles every repository implementation
type Repositories struct {
	User          UserRepository
	LinkedAccount LinkedAccountRepository
	ContentItem   ContentItemRepository
	MediaAsset    MediaAssetRepository
}
