package dedupe

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
)

// Report summarizes one deduplication run.
type Report struct {
	Examined int   `json:"examined"`
	Removed  int64 `json:"removed"`
}

// Deduplicator removes redundant content items for a user. Two items are
// duplicates when they share the remote identity (provider, provider_item_id)
// or when they resolved to the same media asset. The earliest stored item
// always survives, so running the sweep twice is a no-op.
type Deduplicator struct {
	items repository.ContentItemRepository
}

func NewDeduplicator(items repository.ContentItemRepository) *Deduplicator {
	return &Deduplicator{items: items}
}

// Run deduplicates all content of one user and returns how many rows were
// removed.
func (d *Deduplicator) Run(userID uint) (*Report, error) {
	items, err := d.items.ListByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("list content for user %d: %w", userID, err)
	}

	report := &Report{Examined: len(items)}
	toDelete := collectDuplicateIDs(items)
	if len(toDelete) == 0 {
		return report, nil
	}

	removed, err := d.items.DeleteByIDs(toDelete)
	if err != nil {
		return nil, fmt.Errorf("delete duplicate items: %w", err)
	}
	report.Removed = removed

	log.Infof("[Dedupe] User %d: removed %d of %d items", userID, removed, len(items))
	return report, nil
}

// collectDuplicateIDs returns the IDs of every item shadowed by an earlier
// one. Items must be ordered oldest first, which ListByUserID guarantees.
func collectDuplicateIDs(items []models.ContentItem) []uint {
	seenRemote := make(map[string]struct{})
	seenAsset := make(map[uint]struct{})
	var toDelete []uint

	for i := range items {
		item := &items[i]
		duplicate := false

		remoteKey := item.Provider + "\x00" + item.ProviderItemID
		if _, ok := seenRemote[remoteKey]; ok {
			duplicate = true
		}

		if item.MediaAssetID != nil {
			if _, ok := seenAsset[*item.MediaAssetID]; ok {
				duplicate = true
			}
		}

		if duplicate {
			toDelete = append(toDelete, item.ID)
			continue
		}

		seenRemote[remoteKey] = struct{}{}
		if item.MediaAssetID != nil {
			seenAsset[*item.MediaAssetID] = struct{}{}
		}
	}

	return toDelete
}
