package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeContentFetch JobType = "content_fetch"
	JobTypeMediaIngest  JobType = "media_ingest"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
	JobStatusDead       JobStatus = "dead"
)

// Job represents a background job
type Job struct {
	ID            string                 `json:"id"`
	Type          JobType                `json:"type"`
	Status        JobStatus              `json:"status"`
	Payload       map[string]interface{} `json:"payload"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	NextVisibleAt *time.Time             `json:"next_visible_at,omitempty"`
	ErrorMsg      string                 `json:"error_msg,omitempty"`
	Attempts      int                    `json:"attempts"`
	MaxAttempts   int                    `json:"max_attempts"`
}

// ContentFetchPayload describes a full content sync for one linked account.
type ContentFetchPayload struct {
	UserID    uint   `json:"user_id"`
	Provider  string `json:"provider"`
	AccountID uint   `json:"account_id"`
}

// ToMap converts the payload to a map for storage
func (p ContentFetchPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    p.UserID,
		"provider":   p.Provider,
		"account_id": p.AccountID,
	}
}

// ContentFetchPayloadFromMap creates a payload from a map
func ContentFetchPayloadFromMap(data map[string]interface{}) (*ContentFetchPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ContentFetchPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// MediaIngestPayload describes one remote media file to materialize locally.
type MediaIngestPayload struct {
	SourceURL     string `json:"source_url"`
	UserID        uint   `json:"user_id"`
	Provider      string `json:"provider"`
	ContentItemID uint   `json:"content_item_id"`
	DeclaredMime  string `json:"declared_mime,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p MediaIngestPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"source_url":      p.SourceURL,
		"user_id":         p.UserID,
		"provider":        p.Provider,
		"content_item_id": p.ContentItemID,
		"declared_mime":   p.DeclaredMime,
	}
}

// MediaIngestPayloadFromMap creates a payload from a map
func MediaIngestPayloadFromMap(data map[string]interface{}) (*MediaIngestPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload MediaIngestPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.NextVisibleAt = nil
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed and records the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.Attempts++
}

// MarkAsRetrying schedules the next attempt at the given time
func (j *Job) MarkAsRetrying(visibleAt time.Time) {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
	j.NextVisibleAt = &visibleAt
}

// MarkAsDead updates the job status after all attempts are exhausted
func (j *Job) MarkAsDead() {
	j.Status = JobStatusDead
	j.UpdatedAt = time.Now()
	j.NextVisibleAt = nil
}
