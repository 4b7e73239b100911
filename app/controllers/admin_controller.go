package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/internal/pkg/jobqueue"
)

// HandleAdminQueueStats reports the job queue state for operators.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	manager := jobqueue.GetManager()
	queue := manager.GetQueue()
	ctx := c.Context()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[Admin] Failed to load job stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "failed to load queue stats"})
	}

	pending, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)
	delayed, _ := queue.GetDelayedSize(ctx)
	dead, _ := queue.GetDeadSize(ctx)

	return c.JSON(fiber.Map{
		"running":    manager.IsRunning(),
		"totals":     stats,
		"pending":    pending,
		"processing": processing,
		"delayed":    delayed,
		"dead":       dead,
	})
}
