package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	configureTestCache(t)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })
	return NewQueue(1)
}

func TestEnqueueStoresJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueMediaIngest(MediaIngestPayload{
		SourceURL:     "https://cdn.example/a.jpg",
		UserID:        1,
		ContentItemID: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobTypeMediaIngest, stored.Type)
}

func TestProcessJobSuccessRemovesJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var handled int32
	q.RegisterHandler(JobTypeContentFetch, func(context.Context, *Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.ProcessJob(ctx, dequeued)

	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))

	_, err = q.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, redis.Nil, "completed jobs are removed from Redis")

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)
}

func TestProcessJobFailureSchedulesDelayedRetry(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	q.RegisterHandler(JobTypeContentFetch, func(context.Context, *Job) error {
		return errors.New("provider down")
	})

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.ProcessJob(ctx, dequeued)

	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.NextVisibleAt)
	assert.True(t, stored.NextVisibleAt.After(time.Now()))
}

func TestExhaustedJobGoesToDeadList(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	q.RegisterHandler(JobTypeContentFetch, func(context.Context, *Job) error {
		return errors.New("permanent failure")
	})

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	// Burn through every attempt
	for attempt := 0; attempt < DefaultMaxAttempts; attempt++ {
		stored, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		q.ProcessJob(ctx, stored)
	}

	dead, err := q.GetDeadSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDead, stored.Status)
	assert.Equal(t, DefaultMaxAttempts, stored.Attempts)
}

func TestPromoteDueJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	// Drain the pending queue and park the job in the delayed set, due now
	_, err = q.client.RPopLPush(ctx, JobQueueKey, JobProcessingKey).Result()
	require.NoError(t, err)
	q.removeFromProcessing(ctx, job.ID)
	require.NoError(t, q.client.ZAdd(ctx, JobDelayedKey, redis.Z{
		Score:  float64(time.Now().Add(-time.Second).Unix()),
		Member: job.ID,
	}).Err())

	require.NoError(t, q.PromoteDueJobs(ctx))

	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), delayed)

	pending, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
}

func TestPromoteLeavesFutureJobsAlone(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	_, err = q.client.RPopLPush(ctx, JobQueueKey, JobProcessingKey).Result()
	require.NoError(t, err)
	q.removeFromProcessing(ctx, job.ID)
	require.NoError(t, q.client.ZAdd(ctx, JobDelayedKey, redis.Z{
		Score:  float64(time.Now().Add(time.Hour).Unix()),
		Member: job.ID,
	}).Err())

	require.NoError(t, q.PromoteDueJobs(ctx))

	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
}

func TestSweepRecoversStuckJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueContentFetch(ContentFetchPayload{AccountID: 1})
	require.NoError(t, err)

	// Simulate a crashed worker: job parked in processing, started long ago
	_, err = q.client.RPopLPush(ctx, JobQueueKey, JobProcessingKey).Result()
	require.NoError(t, err)
	started := time.Now().Add(-time.Hour)
	job.Status = JobStatusProcessing
	job.ProcessedAt = &started
	q.updateJob(ctx, job)

	q.sweepStuckOnce(ctx, 10*time.Minute)

	pending, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, "recovered by sweeper", stored.ErrorMsg)
}

func TestUnknownJobTypeFails(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueJob(JobType("bogus"), map[string]interface{}{})
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.ProcessJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.ErrorMsg, "unknown job type")
}
