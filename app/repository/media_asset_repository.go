package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
)

// mediaAssetRepository implements the MediaAssetRepository interface
type mediaAssetRepository struct {
	db *gorm.DB
}

// NewMediaAssetRepository creates a new media asset repository instance
func NewMediaAssetRepository(db *gorm.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

// Create inserts a new media asset row. Callers must treat a duplicate-key
// error as "another writer persisted the same bytes first" and re-read by
// content hash.
func (r *mediaAssetRepository) Create(asset *models.MediaAsset) error {
	return r.db.Create(asset).Error
}

// GetByID retrieves an asset by its ID
func (r *mediaAssetRepository) GetByID(id uint) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := r.db.First(&asset, id).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetByContentHash retrieves an asset by the SHA-256 of its bytes
func (r *mediaAssetRepository) GetByContentHash(hash string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := r.db.Where("content_hash = ?", hash).First(&asset).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// ListUnoptimizedForUser returns image assets referenced by the user's
// content items that have not yet been through the optimization batch
func (r *mediaAssetRepository) ListUnoptimizedForUser(userID uint) ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	err := r.db.
		Joins("JOIN content_items ON content_items.media_asset_id = media_assets.id").
		Where("content_items.user_id = ? AND media_assets.optimized = ? AND media_assets.mime_type LIKE 'image/%'", userID, false).
		Group("media_assets.id").
		Find(&assets).Error
	return assets, err
}

// ListCreatedSince returns assets persisted after the given time
func (r *mediaAssetRepository) ListCreatedSince(since time.Time) ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	err := r.db.Where("created_at >= ?", since).Find(&assets).Error
	return assets, err
}

// ListAll returns every stored asset
func (r *mediaAssetRepository) ListAll() ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	err := r.db.Find(&assets).Error
	return assets, err
}

// MarkOptimized flags an asset as processed by the optimization batch
func (r *mediaAssetRepository) MarkOptimized(id uint) error {
	return r.db.Model(&models.MediaAsset{}).Where("id = ?", id).Update("optimized", true).Error
}
