package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/dedupe"
	"github.com/lifeweave/lifeweave/internal/pkg/mediastore"
	"github.com/lifeweave/lifeweave/internal/pkg/usercontext"
)

// HandleMediaOptimize re-encodes the user's unoptimized image assets as WebP.
func HandleMediaOptimize(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	repos := repository.GetGlobalRepositories()
	store := mediastore.NewStore(repos.MediaAsset, repos.ContentItem, "")

	report, err := store.OptimizeUserAssets(userCtx.UserID)
	if err != nil {
		log.Errorf("[Media] Optimize for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "optimization failed"})
	}

	return c.JSON(fiber.Map{
		"affected":   report.Optimized,
		"candidates": report.Candidates,
		"failed":     report.Failed,
	})
}

// HandleMediaDeduplicate removes redundant content items for the user.
func HandleMediaDeduplicate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "login required"})
	}

	repos := repository.GetGlobalRepositories()

	report, err := dedupe.NewDeduplicator(repos.ContentItem).Run(userCtx.UserID)
	if err != nil {
		log.Errorf("[Media] Deduplicate for user %d failed: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "deduplication failed"})
	}

	return c.JSON(fiber.Map{
		"affected": report.Removed,
		"examined": report.Examined,
	})
}
