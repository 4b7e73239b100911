package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/lifeweave/lifeweave/app/controllers"
	"github.com/lifeweave/lifeweave/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})

	media := v1.Group("/media", middleware.RequireAPISessionAuth)
	media.Post("/optimize", controllers.HandleMediaOptimize)
	media.Post("/deduplicate", controllers.HandleMediaDeduplicate)

	admin := v1.Group("/admin", middleware.RequireAPISessionAuth, middleware.RequireAPIAdminAuth)
	admin.Get("/queue/stats", controllers.HandleAdminQueueStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
