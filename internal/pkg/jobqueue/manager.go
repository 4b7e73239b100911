package jobqueue

import (
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/database"
	"github.com/lifeweave/lifeweave/internal/pkg/env"
	"github.com/lifeweave/lifeweave/internal/pkg/ingest"
	"github.com/lifeweave/lifeweave/internal/pkg/mediastore"
	"github.com/lifeweave/lifeweave/internal/pkg/provider"
)

// Manager manages the global job queue and wires the handlers
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if raw := env.GetEnv("JOBQUEUE_WORKERS", ""); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				workerCount = parsed
			}
		}

		globalManager = &Manager{
			queue: NewQueue(workerCount),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// ConfigureHandlers wires the content fetch and media ingest handlers against
// the database and the given provider registry. Must be called before Start.
func (m *Manager) ConfigureHandlers(registry *provider.Registry) {
	repos := repository.NewRepositories(database.GetDB())

	store := mediastore.NewStore(repos.MediaAsset, repos.ContentItem, "")
	syncer := ingest.NewSyncer(registry, repos.LinkedAccount, repos.ContentItem, queueEnqueuer{q: m.queue})

	m.queue.RegisterHandler(JobTypeMediaIngest, newMediaIngestHandler(store))
	m.queue.RegisterHandler(JobTypeContentFetch, newContentFetchHandler(syncer))
}

// Start starts the job queue workers and background sweepers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue...")
	m.queue.Stop()
	m.running = false
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
