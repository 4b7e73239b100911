package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/internal/pkg/ingest"
	"github.com/lifeweave/lifeweave/internal/pkg/mediastore"
	"github.com/lifeweave/lifeweave/internal/pkg/metrics/counter"
)

// EnqueueContentFetch queues a full content sync for one linked account.
func (q *Queue) EnqueueContentFetch(payload ContentFetchPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeContentFetch, payload.ToMap())
}

// EnqueueMediaIngest queues one media materialization.
func (q *Queue) EnqueueMediaIngest(payload MediaIngestPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeMediaIngest, payload.ToMap())
}

// queueEnqueuer adapts the queue to the ingest package's Enqueuer interface
// so the syncer can fan out media jobs without knowing about Redis.
type queueEnqueuer struct {
	q *Queue
}

func (e queueEnqueuer) EnqueueMediaIngest(req ingest.MediaRequest) error {
	_, err := e.q.EnqueueMediaIngest(MediaIngestPayload{
		SourceURL:     req.SourceURL,
		UserID:        req.UserID,
		Provider:      req.Provider,
		ContentItemID: req.ContentItemID,
		DeclaredMime:  req.DeclaredMime,
	})
	return err
}

// newContentFetchHandler builds the handler that runs a full account sync.
func newContentFetchHandler(syncer *ingest.Syncer) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := ContentFetchPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid content fetch payload: %w", err)
		}

		report, err := syncer.SyncAccount(ctx, payload.AccountID)
		if err != nil {
			return err
		}
		for _, warning := range report.Warnings {
			log.Warnf("[JobQueue] Content fetch %s (account %d): %s", job.ID, payload.AccountID, warning)
		}

		if err := counter.AddItemsIngested(payload.AccountID, int64(report.ItemsUpserted)); err != nil {
			log.Warnf("[JobQueue] Failed to count ingested items for account %d: %v", payload.AccountID, err)
		}
		if err := counter.AddMediaEnqueued(payload.AccountID, int64(report.MediaEnqueued)); err != nil {
			log.Warnf("[JobQueue] Failed to count enqueued media for account %d: %v", payload.AccountID, err)
		}
		return nil
	}
}

// newMediaIngestHandler builds the handler that materializes one media file.
func newMediaIngestHandler(store *mediastore.Store) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		payload, err := MediaIngestPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid media ingest payload: %w", err)
		}

		asset, err := store.Materialize(ctx, payload.SourceURL, payload.ContentItemID, payload.DeclaredMime)
		if err != nil {
			return err
		}
		log.Debugf("[JobQueue] Media ingest %s stored asset %d (%s)", job.ID, asset.ID, asset.ContentHash)
		return nil
	}
}
