package renewal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
)

// ExpiryWindow selects credentials whose access token expires within this
// horizon for proactive refresh.
const ExpiryWindow = 24 * time.Hour

// Report summarizes one renewal sweep.
type Report struct {
	Candidates int `json:"candidates"`
	Renewed    int `json:"renewed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Sweeper refreshes expiring credentials across all linked accounts.
type Sweeper struct {
	registry *provider.Registry
	accounts repository.LinkedAccountRepository
}

func NewSweeper(registry *provider.Registry, accounts repository.LinkedAccountRepository) *Sweeper {
	return &Sweeper{registry: registry, accounts: accounts}
}

// Sweep refreshes every credential expiring inside the window. Accounts are
// isolated from each other: one failed refresh never stops the rest of the
// sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	accounts, err := s.accounts.ListExpiring(ExpiryWindow)
	if err != nil {
		return nil, fmt.Errorf("list expiring accounts: %w", err)
	}

	report := &Report{Candidates: len(accounts)}
	for i := range accounts {
		account := &accounts[i]

		adapter, ok := s.registry.Get(account.Provider)
		if !ok {
			log.Warnf("[Renewal] Account %d references unregistered provider %q", account.ID, account.Provider)
			report.Skipped++
			continue
		}

		cred, err := adapter.RefreshCredential(ctx, account.RefreshToken)
		if err != nil {
			if errors.Is(err, provider.ErrUnsupported) {
				// Providers without rotating tokens never reach here in
				// practice since their accounts carry no refresh token.
				log.Debugf("[Renewal] Provider %q does not refresh, skipping account %d", account.Provider, account.ID)
				report.Skipped++
				continue
			}
			log.Errorf("[Renewal] Refresh failed for account %d (%s): %v", account.ID, account.Provider, err)
			report.Failed++
			continue
		}

		refreshToken := cred.RefreshToken
		if refreshToken == "" {
			// Provider kept the old refresh token
			refreshToken = account.RefreshToken
		}

		if err := s.accounts.UpdateTokens(account.ID, cred.AccessToken, refreshToken, cred.ExpiresAt); err != nil {
			log.Errorf("[Renewal] Persisting renewed tokens for account %d failed: %v", account.ID, err)
			report.Failed++
			continue
		}
		report.Renewed++
	}

	log.Infof("[Renewal] Sweep done: %d candidates, %d renewed, %d skipped, %d failed",
		report.Candidates, report.Renewed, report.Skipped, report.Failed)
	return report, nil
}
