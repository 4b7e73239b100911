package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
)

// contentItemRepository implements the ContentItemRepository interface
type contentItemRepository struct {
	db *gorm.DB
}

// NewContentItemRepository creates a new content item repository instance
func NewContentItemRepository(db *gorm.DB) ContentItemRepository {
	return &contentItemRepository{db: db}
}

// Upsert creates the item or updates the mutable columns of the existing
// (provider, provider_item_id) row. A lost insert race against a concurrent
// fetch of an overlapping page degrades into the update path.
func (r *contentItemRepository) Upsert(item *models.ContentItem) (*models.ContentItem, error) {
	var existing models.ContentItem
	err := r.db.Where("provider = ? AND provider_item_id = ?", item.Provider, item.ProviderItemID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if createErr := r.db.Create(item).Error; createErr != nil {
			if !IsDuplicateKey(createErr) {
				return nil, createErr
			}
			// Concurrent writer won the insert; fall through to update.
			if err := r.db.Where("provider = ? AND provider_item_id = ?", item.Provider, item.ProviderItemID).
				First(&existing).Error; err != nil {
				return nil, err
			}
		} else {
			return item, nil
		}
	} else if err != nil {
		return nil, err
	}

	existing.Kind = item.Kind
	existing.Text = item.Text
	existing.MediaURLs = item.MediaURLs
	existing.PostedAt = item.PostedAt
	existing.EngagementCount = item.EngagementCount
	if err := r.db.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetByID retrieves a content item by its ID
func (r *contentItemRepository) GetByID(id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	err := r.db.Preload("MediaAsset").First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByUserID retrieves all content items of one user, oldest first
func (r *contentItemRepository) ListByUserID(userID uint) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&items).Error
	return items, err
}

// SetMediaAsset links a stored media asset to a content item
func (r *contentItemRepository) SetMediaAsset(itemID, assetID uint) error {
	return r.db.Model(&models.ContentItem{}).Where("id = ?", itemID).
		Update("media_asset_id", assetID).Error
}

// DeleteByIDs removes content items and reports how many rows were deleted
func (r *contentItemRepository) DeleteByIDs(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Delete(&models.ContentItem{}, ids)
	return result.RowsAffected, result.Error
}

// CountByUserID returns the number of content items of one user
func (r *contentItemRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ContentItem{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
