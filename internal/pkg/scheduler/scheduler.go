package scheduler

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/lifeweave/lifeweave/internal/pkg/cache"
	"github.com/lifeweave/lifeweave/internal/pkg/metrics/counter"
	"github.com/lifeweave/lifeweave/internal/pkg/renewal"
	"github.com/lifeweave/lifeweave/internal/pkg/s3backup"
)

// Scheduler owns the recurring maintenance tasks: credential renewal,
// ephemeral-state cleanup, ingestion counter flushes and S3 backups.
// Backups are optional, the rest always runs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *renewal.Sweeper
	backups *s3backup.Runner
}

func New(sweeper *renewal.Sweeper, backups *s3backup.Runner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		backups: backups,
	}
}

// Start registers all entries and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 6h", s.runRenewalSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.runStateCleanup); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 5m", s.runCounterFlush); err != nil {
		return err
	}

	if s.backups != nil {
		if _, err := s.cron.AddFunc("@daily", s.runDailyBackup); err != nil {
			return err
		}
		if _, err := s.cron.AddFunc("@weekly", s.runWeeklyReconcile); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Infof("[Scheduler] Started with %d entries", len(s.cron.Entries()))
	return nil
}

// Stop halts the cron loop and waits for running entries to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("[Scheduler] Stopped")
}

func (s *Scheduler) runRenewalSweep() {
	if _, err := s.sweeper.Sweep(context.Background()); err != nil {
		log.Errorf("[Scheduler] Renewal sweep failed: %v", err)
	}
}

// runStateCleanup deletes pending authorization states that lost their TTL.
// Normal states expire on their own; this catches keys left behind by manual
// Redis surgery or persistence quirks.
func (s *Scheduler) runStateCleanup() {
	client := cache.GetClient()
	ctx := context.Background()

	removed := 0
	iter := client.Scan(ctx, 0, "pkce:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}
		if ttl < 0 {
			if client.Del(ctx, key).Err() == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		log.Errorf("[Scheduler] State cleanup scan failed: %v", err)
		return
	}
	if removed > 0 {
		log.Warnf("[Scheduler] State cleanup removed %d keys without TTL", removed)
	}
}

// runCounterFlush drains the pending ingestion counters into the database.
func (s *Scheduler) runCounterFlush() {
	if err := counter.FlushAll(); err != nil {
		log.Errorf("[Scheduler] Counter flush failed: %v", err)
	}
}

func (s *Scheduler) runDailyBackup() {
	if _, err := s.backups.RunDaily(); err != nil {
		log.Errorf("[Scheduler] Daily backup failed: %v", err)
	}
}

func (s *Scheduler) runWeeklyReconcile() {
	if _, err := s.backups.RunWeeklyReconcile(); err != nil {
		log.Errorf("[Scheduler] Weekly reconcile failed: %v", err)
	}
}
