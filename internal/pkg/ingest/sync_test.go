package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
)

type pagedAdapter struct {
	name     string
	pages    []provider.ContentPage
	pageErrs map[int]error // 0-based fetch index -> error
	fetches  int
}

func (a *pagedAdapter) Name() string          { return a.name }
func (a *pagedAdapter) SupportsPKCE() bool    { return false }
func (a *pagedAdapter) SupportsRefresh() bool { return false }
func (a *pagedAdapter) AuthorizationURL(string, string) string {
	return ""
}
func (a *pagedAdapter) ExchangeCode(context.Context, string, string) (*provider.Credential, error) {
	return nil, provider.ErrUnsupported
}
func (a *pagedAdapter) RefreshCredential(context.Context, string) (*provider.Credential, error) {
	return nil, provider.ErrUnsupported
}
func (a *pagedAdapter) FetchIdentity(context.Context, string) (*provider.Identity, error) {
	return &provider.Identity{}, nil
}

func (a *pagedAdapter) FetchContentPage(_ context.Context, _ string, cursor string) (*provider.ContentPage, error) {
	idx := a.fetches
	a.fetches++
	if err, ok := a.pageErrs[idx]; ok {
		return nil, err
	}
	if idx >= len(a.pages) {
		return &provider.ContentPage{}, nil
	}
	page := a.pages[idx]
	return &page, nil
}

type fakeAccountRepo struct {
	accounts map[uint]*models.LinkedAccount
}

func (r *fakeAccountRepo) Upsert(*models.LinkedAccount) error { return nil }

func (r *fakeAccountRepo) GetByID(id uint) (*models.LinkedAccount, error) {
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountRepo) GetByUserAndProvider(uint, string) (*models.LinkedAccount, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeAccountRepo) ListByUserID(uint) ([]models.LinkedAccount, error)        { return nil, nil }
func (r *fakeAccountRepo) ListExpiring(time.Duration) ([]models.LinkedAccount, error) { return nil, nil }
func (r *fakeAccountRepo) UpdateTokens(uint, string, string, *time.Time) error      { return nil }
func (r *fakeAccountRepo) Delete(uint) error                                        { return nil }

type recordingItemRepo struct {
	nextID    uint
	upserts   []models.ContentItem
	failOn    map[string]error // provider item ID -> error
	byItemKey map[string]uint
}

func newRecordingItemRepo() *recordingItemRepo {
	return &recordingItemRepo{nextID: 100, failOn: map[string]error{}, byItemKey: map[string]uint{}}
}

func (r *recordingItemRepo) Upsert(item *models.ContentItem) (*models.ContentItem, error) {
	if err, ok := r.failOn[item.ProviderItemID]; ok {
		return nil, err
	}
	key := item.Provider + "/" + item.ProviderItemID
	if id, ok := r.byItemKey[key]; ok {
		item.ID = id
	} else {
		item.ID = r.nextID
		r.nextID++
		r.byItemKey[key] = item.ID
	}
	r.upserts = append(r.upserts, *item)
	return item, nil
}

func (r *recordingItemRepo) GetByID(uint) (*models.ContentItem, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *recordingItemRepo) ListByUserID(uint) ([]models.ContentItem, error) { return nil, nil }
func (r *recordingItemRepo) SetMediaAsset(uint, uint) error                  { return nil }
func (r *recordingItemRepo) DeleteByIDs([]uint) (int64, error)               { return 0, nil }
func (r *recordingItemRepo) CountByUserID(uint) (int64, error)               { return 0, nil }

type recordingEnqueuer struct {
	requests []MediaRequest
	err      error
}

func (e *recordingEnqueuer) EnqueueMediaIngest(req MediaRequest) error {
	if e.err != nil {
		return e.err
	}
	e.requests = append(e.requests, req)
	return nil
}

var (
	_ repository.LinkedAccountRepository = (*fakeAccountRepo)(nil)
	_ repository.ContentItemRepository   = (*recordingItemRepo)(nil)
)

func newTestSyncer(adapter provider.Adapter) (*Syncer, *recordingItemRepo, *recordingEnqueuer) {
	reg := provider.NewRegistry()
	reg.Register(adapter)
	accounts := &fakeAccountRepo{accounts: map[uint]*models.LinkedAccount{
		1: {ID: 1, UserID: 9, Provider: adapter.Name(), AccessToken: "tok"},
	}}
	items := newRecordingItemRepo()
	enqueuer := &recordingEnqueuer{}
	return NewSyncer(reg, accounts, items, enqueuer), items, enqueuer
}

func TestSyncAccountPagesThroughAllContent(t *testing.T) {
	adapter := &pagedAdapter{
		name: "fakebook",
		pages: []provider.ContentPage{
			{
				Items: []provider.Item{
					{ExternalID: "p1", Kind: models.ContentKindPost, Text: "first"},
					{ExternalID: "p2", Kind: models.ContentKindPhoto, MediaURLs: []string{"https://cdn/p2.jpg"}},
				},
				NextCursor: "page2",
			},
			{
				Items: []provider.Item{
					{ExternalID: "p3", Kind: models.ContentKindPost, Text: "last"},
				},
			},
		},
	}

	syncer, items, enqueuer := newTestSyncer(adapter)

	report, err := syncer.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.ItemsFetched)
	assert.Equal(t, 3, report.ItemsUpserted)
	assert.Equal(t, 1, report.MediaEnqueued)
	assert.Empty(t, report.Warnings)

	require.Len(t, items.upserts, 3)
	assert.Equal(t, uint(9), items.upserts[0].UserID)
	assert.Equal(t, "fakebook", items.upserts[0].Provider)

	require.Len(t, enqueuer.requests, 1)
	assert.Equal(t, "https://cdn/p2.jpg", enqueuer.requests[0].SourceURL)
	assert.Equal(t, items.byItemKey["fakebook/p2"], enqueuer.requests[0].ContentItemID)
}

func TestSyncAccountUnknownAccount(t *testing.T) {
	syncer, _, _ := newTestSyncer(&pagedAdapter{name: "fakebook"})
	_, err := syncer.SyncAccount(context.Background(), 999)
	assert.Error(t, err)
}

func TestSyncAccountFirstPageFailureIsFatal(t *testing.T) {
	adapter := &pagedAdapter{
		name:     "fakebook",
		pageErrs: map[int]error{0: errors.New("rate limited")},
	}
	syncer, items, _ := newTestSyncer(adapter)

	_, err := syncer.SyncAccount(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, items.upserts)
}

func TestSyncAccountLaterPageFailureIsPartialSuccess(t *testing.T) {
	adapter := &pagedAdapter{
		name: "fakebook",
		pages: []provider.ContentPage{
			{
				Items:      []provider.Item{{ExternalID: "p1", Kind: models.ContentKindPost}},
				NextCursor: "page2",
			},
		},
		pageErrs: map[int]error{1: errors.New("server error")},
	}
	syncer, _, _ := newTestSyncer(adapter)

	report, err := syncer.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.ItemsUpserted)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "page 2")
}

func TestSyncAccountItemFailureDoesNotAbortPage(t *testing.T) {
	adapter := &pagedAdapter{
		name: "fakebook",
		pages: []provider.ContentPage{
			{
				Items: []provider.Item{
					{ExternalID: "bad", Kind: models.ContentKindPost},
					{ExternalID: "good", Kind: models.ContentKindPost},
				},
			},
		},
	}
	syncer, items, _ := newTestSyncer(adapter)
	items.failOn["bad"] = errors.New("column too long")

	report, err := syncer.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ItemsFetched)
	assert.Equal(t, 1, report.ItemsUpserted)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "bad")
}

func TestSyncAccountEnqueueFailureIsWarning(t *testing.T) {
	adapter := &pagedAdapter{
		name: "fakebook",
		pages: []provider.ContentPage{
			{
				Items: []provider.Item{
					{ExternalID: "p1", Kind: models.ContentKindPhoto, MediaURLs: []string{"https://cdn/a.jpg"}},
				},
			},
		},
	}
	syncer, _, enqueuer := newTestSyncer(adapter)
	enqueuer.err = errors.New("redis down")

	report, err := syncer.SyncAccount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ItemsUpserted)
	assert.Equal(t, 0, report.MediaEnqueued)
	require.Len(t, report.Warnings, 1)
}
