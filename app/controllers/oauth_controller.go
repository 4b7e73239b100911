package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/jobqueue"
	"github.com/lifeweave/lifeweave/internal/pkg/oauth"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
	"github.com/lifeweave/lifeweave/internal/pkg/usercontext"
)

var (
	oauthHandshake *oauth.Handshake
	oauthRegistry  *provider.Registry
)

// InitializeOAuthController wires the handshake manager and adapter registry.
// Must be called once during startup, before routes are served.
func InitializeOAuthController(handshake *oauth.Handshake, registry *provider.Registry) {
	oauthHandshake = handshake
	oauthRegistry = registry
}

// HandleOAuthInitiate starts the authorization flow for one provider and
// returns the URL the client must redirect the user to.
func HandleOAuthInitiate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	providerName := c.Params("provider")
	if _, ok := oauthRegistry.Get(providerName); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "unknown provider"})
	}

	authURL, err := oauthHandshake.Begin(userCtx.UserID, providerName)
	if err != nil {
		log.Errorf("[OAuth] Begin failed for provider %s: %v", providerName, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to start authorization"})
	}

	return c.JSON(fiber.Map{"auth_url": authURL})
}

// HandleOAuthCallback redeems the provider callback: it validates the state,
// exchanges the code, stores the credential and kicks off the first content
// sync for the freshly linked account.
func HandleOAuthCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "please restart authorization"})
	}

	rec, cred, err := oauthHandshake.Complete(c.Context(), state, code)
	if err != nil {
		if errors.Is(err, oauth.ErrStateNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "please restart authorization"})
		}
		log.Errorf("[OAuth] Code exchange failed for provider %s: %v", rec.Provider, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "failed to complete authentication"})
	}

	adapter, ok := oauthRegistry.Get(rec.Provider)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "unknown provider"})
	}

	providerUserID := cred.ProviderUserID
	displayName := ""
	if identity, err := adapter.FetchIdentity(c.Context(), cred.AccessToken); err == nil {
		providerUserID = identity.ExternalID
		displayName = identity.DisplayName
	} else if providerUserID == "" {
		// Without any remote identity the link cannot be keyed
		log.Errorf("[OAuth] Identity fetch failed for provider %s: %v", rec.Provider, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "failed to complete authentication"})
	}

	account := &models.LinkedAccount{
		UserID:         rec.UserID,
		Provider:       rec.Provider,
		ProviderUserID: providerUserID,
		DisplayName:    displayName,
		AccessToken:    cred.AccessToken,
		RefreshToken:   cred.RefreshToken,
		ExpiresAt:      cred.ExpiresAt,
	}

	repo := repository.GetGlobalFactory().GetLinkedAccountRepository()
	if err := repo.Upsert(account); err != nil {
		log.Errorf("[OAuth] Persisting linked account failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to store credential"})
	}

	// First sync is fire-and-continue; linking already succeeded
	queue := jobqueue.GetManager().GetQueue()
	if _, err := queue.EnqueueContentFetch(jobqueue.ContentFetchPayload{
		UserID:    rec.UserID,
		Provider:  rec.Provider,
		AccountID: account.ID,
	}); err != nil {
		log.Errorf("[OAuth] Enqueue initial content fetch failed for account %d: %v", account.ID, err)
	}

	return c.JSON(fiber.Map{
		"provider":   rec.Provider,
		"account_id": account.ID,
		"message":    "account linked",
	})
}
