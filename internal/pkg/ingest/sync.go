package ingest

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
)

// MaxPagesPerSync caps a single sync so one account with a huge history
// cannot monopolize a worker. The next sync resumes from scratch and the
// upserts make that cheap.
const MaxPagesPerSync = 50

// MediaRequest asks for one remote media file to be materialized and linked
// to a content item.
type MediaRequest struct {
	SourceURL     string
	UserID        uint
	Provider      string
	ContentItemID uint
	DeclaredMime  string
}

// Enqueuer hands media requests off for asynchronous processing.
type Enqueuer interface {
	EnqueueMediaIngest(req MediaRequest) error
}

// SyncReport summarizes one account sync. A non-empty Warnings list with a
// nil error means the sync succeeded partially.
type SyncReport struct {
	Provider      string   `json:"provider"`
	Pages         int      `json:"pages"`
	ItemsFetched  int      `json:"items_fetched"`
	ItemsUpserted int      `json:"items_upserted"`
	MediaEnqueued int      `json:"media_enqueued"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Syncer pulls a linked account's content through its provider adapter and
// persists it page by page.
type Syncer struct {
	registry *provider.Registry
	accounts repository.LinkedAccountRepository
	items    repository.ContentItemRepository
	enqueuer Enqueuer
}

func NewSyncer(registry *provider.Registry, accounts repository.LinkedAccountRepository, items repository.ContentItemRepository, enqueuer Enqueuer) *Syncer {
	return &Syncer{
		registry: registry,
		accounts: accounts,
		items:    items,
		enqueuer: enqueuer,
	}
}

// SyncAccount fetches every content page for the account and upserts the
// items. Item-level failures are collected as warnings; only failures that
// prevent any progress (unknown account, unknown provider, first page
// unreachable) fail the sync.
func (s *Syncer) SyncAccount(ctx context.Context, accountID uint) (*SyncReport, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("load linked account %d: %w", accountID, err)
	}

	adapter, ok := s.registry.Get(account.Provider)
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", account.Provider)
	}

	report := &SyncReport{Provider: account.Provider}
	cursor := ""

	for report.Pages < MaxPagesPerSync {
		page, err := adapter.FetchContentPage(ctx, account.AccessToken, cursor)
		if err != nil {
			if report.Pages == 0 {
				return nil, fmt.Errorf("fetch first content page: %w", err)
			}
			// Later pages failing leave us with a usable partial sync
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("page %d fetch failed: %v", report.Pages+1, err))
			break
		}
		report.Pages++
		report.ItemsFetched += len(page.Items)

		for i := range page.Items {
			s.ingestItem(account, &page.Items[i], report)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	log.Infof("[Ingest] Synced account %d (%s): %d items over %d pages, %d warnings",
		accountID, account.Provider, report.ItemsUpserted, report.Pages, len(report.Warnings))
	return report, nil
}

// ingestItem upserts one fetched item and enqueues its media. Failures are
// recorded as warnings so one bad item never aborts the page.
func (s *Syncer) ingestItem(account *models.LinkedAccount, item *provider.Item, report *SyncReport) {
	record := &models.ContentItem{
		UserID:          account.UserID,
		Provider:        account.Provider,
		ProviderItemID:  item.ExternalID,
		Kind:            item.Kind,
		Text:            item.Text,
		MediaURLs:       models.StringList(item.MediaURLs),
		PostedAt:        item.PostedAt,
		EngagementCount: item.EngagementCount,
	}

	saved, err := s.items.Upsert(record)
	if err != nil {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("item %s: upsert failed: %v", item.ExternalID, err))
		return
	}
	report.ItemsUpserted++

	for _, mediaURL := range item.MediaURLs {
		err := s.enqueuer.EnqueueMediaIngest(MediaRequest{
			SourceURL:     mediaURL,
			UserID:        account.UserID,
			Provider:      account.Provider,
			ContentItemID: saved.ID,
		})
		if err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("item %s: enqueue media failed: %v", item.ExternalID, err))
			continue
		}
		report.MediaEnqueued++
	}
}
