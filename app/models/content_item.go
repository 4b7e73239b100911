package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// StringList stores a JSON array of strings in a single column.
type StringList []string

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, l)
}

// Content kinds as reported by the provider adapters.
const (
	ContentKindPost  = "post"
	ContentKindPhoto = "photo"
	ContentKindVideo = "video"
	ContentKindEmail = "email"
)

// ContentItem is one ingested remote post/photo/email-metadata record.
// (provider, provider_item_id) is unique: repeated ingestion of the same
// remote item upserts instead of duplicating. Races across overlapping
// paginated fetches are reconciled later by the deduplication sweep.
type ContentItem struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	UserID          uint        `gorm:"index" json:"user_id"`
	Provider        string      `gorm:"index:provider_item,unique;type:varchar(50)" json:"provider"`
	ProviderItemID  string      `gorm:"index:provider_item,unique;type:varchar(191)" json:"provider_item_id"`
	Kind            string      `gorm:"type:varchar(50)" json:"kind"`
	Text            string      `gorm:"type:text" json:"text"`
	MediaURLs       StringList  `gorm:"type:json" json:"media_urls"`
	PostedAt        *time.Time  `gorm:"type:datetime" json:"posted_at"`
	EngagementCount int         `gorm:"default:0" json:"engagement_count"`
	MediaAssetID    *uint       `gorm:"index" json:"media_asset_id,omitempty"`
	MediaAsset      *MediaAsset `gorm:"foreignKey:MediaAssetID" json:"media_asset,omitempty"`
	CreatedAt       time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindContentItemByProviderItem loads an item by its external identifier.
func FindContentItemByProviderItem(db *gorm.DB, provider, providerItemID string) (*ContentItem, error) {
	var item ContentItem
	result := db.Where("provider = ? AND provider_item_id = ?", provider, providerItemID).First(&item)
	return &item, result.Error
}
