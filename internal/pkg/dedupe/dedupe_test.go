package dedupe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
)

type listingItemRepo struct {
	items   []models.ContentItem
	listErr error
	deleted []uint
}

func (r *listingItemRepo) Upsert(item *models.ContentItem) (*models.ContentItem, error) {
	return item, nil
}
func (r *listingItemRepo) GetByID(uint) (*models.ContentItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *listingItemRepo) ListByUserID(uint) ([]models.ContentItem, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	remaining := make([]models.ContentItem, 0, len(r.items))
	deleted := map[uint]struct{}{}
	for _, id := range r.deleted {
		deleted[id] = struct{}{}
	}
	for _, item := range r.items {
		if _, gone := deleted[item.ID]; !gone {
			remaining = append(remaining, item)
		}
	}
	return remaining, nil
}

func (r *listingItemRepo) SetMediaAsset(uint, uint) error { return nil }

func (r *listingItemRepo) DeleteByIDs(ids []uint) (int64, error) {
	r.deleted = append(r.deleted, ids...)
	return int64(len(ids)), nil
}

func (r *listingItemRepo) CountByUserID(uint) (int64, error) { return 0, nil }

var _ repository.ContentItemRepository = (*listingItemRepo)(nil)

func item(id uint, providerName, remoteID string, assetID *uint, age time.Duration) models.ContentItem {
	return models.ContentItem{
		ID:             id,
		UserID:         1,
		Provider:       providerName,
		ProviderItemID: remoteID,
		MediaAssetID:   assetID,
		CreatedAt:      time.Now().Add(-age),
	}
}

func assetRef(id uint) *uint { return &id }

func TestRunNoDuplicates(t *testing.T) {
	repo := &listingItemRepo{items: []models.ContentItem{
		item(1, "vk", "a", nil, 3*time.Hour),
		item(2, "vk", "b", assetRef(10), 2*time.Hour),
		item(3, "twitter", "a", assetRef(11), time.Hour),
	}}

	report, err := NewDeduplicator(repo).Run(1)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, int64(0), report.Removed)
	assert.Empty(t, repo.deleted)
}

func TestRunRemovesRemoteIDDuplicatesKeepingEarliest(t *testing.T) {
	repo := &listingItemRepo{items: []models.ContentItem{
		item(1, "vk", "post-1", nil, 3*time.Hour),
		item(2, "vk", "post-1", nil, 2*time.Hour),
		item(3, "vk", "post-1", nil, time.Hour),
	}}

	report, err := NewDeduplicator(repo).Run(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Removed)
	assert.ElementsMatch(t, []uint{2, 3}, repo.deleted, "the oldest row must survive")
}

func TestRunRemovesSharedAssetDuplicates(t *testing.T) {
	repo := &listingItemRepo{items: []models.ContentItem{
		item(1, "vk", "a", assetRef(42), 2*time.Hour),
		item(2, "instagram", "b", assetRef(42), time.Hour),
	}}

	report, err := NewDeduplicator(repo).Run(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Removed)
	assert.Equal(t, []uint{2}, repo.deleted)
}

func TestRunSameRemoteIDDifferentProvidersKept(t *testing.T) {
	repo := &listingItemRepo{items: []models.ContentItem{
		item(1, "vk", "123", nil, 2*time.Hour),
		item(2, "ok", "123", nil, time.Hour),
	}}

	report, err := NewDeduplicator(repo).Run(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Removed)
}

func TestRunIsIdempotent(t *testing.T) {
	repo := &listingItemRepo{items: []models.ContentItem{
		item(1, "vk", "x", nil, 2*time.Hour),
		item(2, "vk", "x", nil, time.Hour),
	}}

	dedup := NewDeduplicator(repo)

	first, err := dedup.Run(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Removed)

	second, err := dedup.Run(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Removed, "a second sweep must find nothing")
}

func TestRunListFailure(t *testing.T) {
	repo := &listingItemRepo{listErr: errors.New("db down")}
	_, err := NewDeduplicator(repo).Run(1)
	assert.Error(t, err)
}
