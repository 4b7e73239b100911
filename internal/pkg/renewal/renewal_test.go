package renewal

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

type refreshAdapter struct {
	name       string
	refresh    bool
	failTokens map[string]error
	calls      []string
}

func (a *refreshAdapter) Name() string                         { return a.name }
func (a *refreshAdapter) SupportsPKCE() bool                   { return false }
func (a *refreshAdapter) SupportsRefresh() bool                { return a.refresh }
func (a *refreshAdapter) AuthorizationURL(string, string) string { return "" }

func (a *refreshAdapter) ExchangeCode(context.Context, string, string) (*provider.Credential, error) {
	return nil, provider.ErrUnsupported
}

func (a *refreshAdapter) RefreshCredential(_ context.Context, refreshToken string) (*provider.Credential, error) {
	a.calls = append(a.calls, refreshToken)
	if !a.refresh {
		return nil, provider.ErrUnsupported
	}
	if err, ok := a.failTokens[refreshToken]; ok {
		return nil, err
	}
	expires := time.Now().Add(2 * time.Hour)
	return &provider.Credential{
		AccessToken:  "fresh-" + refreshToken,
		RefreshToken: "rotated-" + refreshToken,
		ExpiresAt:    &expires,
	}, nil
}

func (a *refreshAdapter) FetchIdentity(context.Context, string) (*provider.Identity, error) {
	return &provider.Identity{}, nil
}

func (a *refreshAdapter) FetchContentPage(context.Context, string, string) (*provider.ContentPage, error) {
	return &provider.ContentPage{}, nil
}

type expiringAccountRepo struct {
	expiring []models.LinkedAccount
	listErr  error
	updates  map[uint][3]string // id -> access, refresh, expiry presence
	failIDs  map[uint]error
}

func newExpiringAccountRepo(accounts ...models.LinkedAccount) *expiringAccountRepo {
	return &expiringAccountRepo{
		expiring: accounts,
		updates:  map[uint][3]string{},
		failIDs:  map[uint]error{},
	}
}

func (r *expiringAccountRepo) Upsert(*models.LinkedAccount) error { return nil }
func (r *expiringAccountRepo) GetByID(uint) (*models.LinkedAccount, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *expiringAccountRepo) GetByUserAndProvider(uint, string) (*models.LinkedAccount, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *expiringAccountRepo) ListByUserID(uint) ([]models.LinkedAccount, error) { return nil, nil }

func (r *expiringAccountRepo) ListExpiring(time.Duration) ([]models.LinkedAccount, error) {
	return r.expiring, r.listErr
}

func (r *expiringAccountRepo) UpdateTokens(id uint, access, refresh string, expiresAt *time.Time) error {
	if err, ok := r.failIDs[id]; ok {
		return err
	}
	expiry := ""
	if expiresAt != nil {
		expiry = expiresAt.Format(time.RFC3339)
	}
	r.updates[id] = [3]string{access, refresh, expiry}
	return nil
}

func (r *expiringAccountRepo) Delete(uint) error { return nil }

var _ repository.LinkedAccountRepository = (*expiringAccountRepo)(nil)

func account(id uint, providerName, refreshToken string) models.LinkedAccount {
	expires := time.Now().Add(time.Hour)
	return models.LinkedAccount{
		ID:           id,
		UserID:       1,
		Provider:     providerName,
		AccessToken:  "stale",
		RefreshToken: refreshToken,
		ExpiresAt:    &expires,
	}
}

func TestSweepRenewsExpiringAccounts(t *testing.T) {
	adapter := &refreshAdapter{name: "twitter", refresh: true}
	reg := provider.NewRegistry()
	reg.Register(adapter)

	repo := newExpiringAccountRepo(
		account(1, "twitter", "rt-1"),
		account(2, "twitter", "rt-2"),
	)

	report, err := NewSweeper(reg, repo).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Renewed)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, "fresh-rt-1", repo.updates[1][0])
	assert.Equal(t, "rotated-rt-1", repo.updates[1][1])
	assert.NotEmpty(t, repo.updates[1][2], "renewed credential must carry a new expiry")
}

func TestSweepOneFailureDoesNotStopOthers(t *testing.T) {
	adapter := &refreshAdapter{
		name:       "twitter",
		refresh:    true,
		failTokens: map[string]error{"rt-2": errors.New("revoked")},
	}
	reg := provider.NewRegistry()
	reg.Register(adapter)

	repo := newExpiringAccountRepo(
		account(1, "twitter", "rt-1"),
		account(2, "twitter", "rt-2"),
		account(3, "twitter", "rt-3"),
	)

	report, err := NewSweeper(reg, repo).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 2, report.Renewed)
	assert.Equal(t, 1, report.Failed)

	_, badUpdated := repo.updates[2]
	assert.False(t, badUpdated, "failed refresh must not overwrite stored tokens")
	assert.Contains(t, repo.updates, uint(1))
	assert.Contains(t, repo.updates, uint(3))
}

func TestSweepSkipsNonRefreshingProvider(t *testing.T) {
	adapter := &refreshAdapter{name: "vk", refresh: false}
	reg := provider.NewRegistry()
	reg.Register(adapter)

	repo := newExpiringAccountRepo(account(1, "vk", "stray-token"))

	report, err := NewSweeper(reg, repo).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Renewed)
	assert.Empty(t, repo.updates)
}

func TestSweepSkipsUnregisteredProvider(t *testing.T) {
	reg := provider.NewRegistry()
	repo := newExpiringAccountRepo(account(1, "myspace", "rt"))

	report, err := NewSweeper(reg, repo).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
}

func TestSweepKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	adapter := &keepTokenAdapter{}
	reg := provider.NewRegistry()
	reg.Register(adapter)

	repo := newExpiringAccountRepo(account(1, "google", "rt-keep"))

	_, err := NewSweeper(reg, repo).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rt-keep", repo.updates[1][1], "missing rotation keeps the stored refresh token")
}

func TestSweepListFailure(t *testing.T) {
	reg := provider.NewRegistry()
	repo := newExpiringAccountRepo()
	repo.listErr = errors.New("db down")

	_, err := NewSweeper(reg, repo).Sweep(context.Background())
	assert.Error(t, err)
}

// keepTokenAdapter refreshes without returning a new refresh token.
type keepTokenAdapter struct{}

func (a *keepTokenAdapter) Name() string                           { return "google" }
func (a *keepTokenAdapter) SupportsPKCE() bool                     { return false }
func (a *keepTokenAdapter) SupportsRefresh() bool                  { return true }
func (a *keepTokenAdapter) AuthorizationURL(string, string) string { return "" }

func (a *keepTokenAdapter) ExchangeCode(context.Context, string, string) (*provider.Credential, error) {
	return nil, provider.ErrUnsupported
}

func (a *keepTokenAdapter) RefreshCredential(context.Context, string) (*provider.Credential, error) {
	expires := time.Now().Add(time.Hour)
	return &provider.Credential{AccessToken: "fresh", ExpiresAt: &expires}, nil
}

func (a *keepTokenAdapter) FetchIdentity(context.Context, string) (*provider.Identity, error) {
	return &provider.Identity{}, nil
}

func (a *keepTokenAdapter) FetchContentPage(context.Context, string, string) (*provider.ContentPage, error) {
	return &provider.ContentPage{}, nil
}
