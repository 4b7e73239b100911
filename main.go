package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lifeweave/lifeweave/app/controllers"
	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/cache"
	"github.com/lifeweave/lifeweave/internal/pkg/database"
	"github.com/lifeweave/lifeweave/internal/pkg/env"
	"github.com/lifeweave/lifeweave/internal/pkg/jobqueue"
	"github.com/lifeweave/lifeweave/internal/pkg/oauth"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
	"github.com/lifeweave/lifeweave/internal/pkg/renewal"
	"github.com/lifeweave/lifeweave/internal/pkg/router"
	"github.com/lifeweave/lifeweave/internal/pkg/s3backup"
	"github.com/lifeweave/lifeweave/internal/pkg/scheduler"
)

func main() {
	app, sched, manager := NewApplication()

	// graceful shutdown on SIGINT/SIGTERM
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Println("Shutting down...")
		sched.Stop()
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *scheduler.Scheduler, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// OAuth providers from environment
	registry := provider.BuildRegistry()
	controllers.InitializeOAuthController(
		oauth.NewHandshake(registry, oauth.RedisStateStore{}),
		registry,
	)

	// background job queue
	manager := jobqueue.GetManager()
	manager.ConfigureHandlers(registry)
	manager.Start()

	// periodic jobs: credential renewal, state cleanup, S3 backups
	repos := repository.GetGlobalRepositories()
	sweeper := renewal.NewSweeper(registry, repos.LinkedAccount)

	var backups *s3backup.Runner
	if cfg, err := s3backup.LoadConfig(); err != nil {
		log.Printf("S3 backup disabled: %v", err)
	} else if cfg.IsEnabled() {
		client, err := s3backup.NewClient(cfg)
		if err != nil {
			log.Printf("S3 backup disabled: %v", err)
		} else {
			backups = s3backup.NewRunner(client, cfg, repos.MediaAsset)
		}
	}

	sched := scheduler.New(sweeper, backups)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 104857600, // 100 MiB
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// materialized media is served straight from disk
	app.Static("/media", env.GetEnv("MEDIA_STORAGE_PATH", "uploads/media"))

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, sched, manager
}
