package s3backup

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
)

// dailyLookback adds slack over 24h so a slow previous run cannot leave a
// gap between two daily windows.
const dailyLookback = 26 * time.Hour

// objectStore is the subset of Client the backup runner needs.
type objectStore interface {
	UploadFile(localFilePath, objectKey string) (*UploadResult, error)
	ObjectExists(objectKey string) (bool, error)
}

// BackupReport summarizes one backup run.
type BackupReport struct {
	Candidates int `json:"candidates"`
	Uploaded   int `json:"uploaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Runner copies local media assets into the configured S3 bucket.
type Runner struct {
	store  objectStore
	config *Config
	assets repository.MediaAssetRepository
}

func NewRunner(store objectStore, cfg *Config, assets repository.MediaAssetRepository) *Runner {
	return &Runner{store: store, config: cfg, assets: assets}
}

// RunDaily uploads every asset stored since the last daily window.
func (r *Runner) RunDaily() (*BackupReport, error) {
	assets, err := r.assets.ListCreatedSince(time.Now().Add(-dailyLookback))
	if err != nil {
		return nil, fmt.Errorf("list recent assets: %w", err)
	}
	return r.uploadMissing(assets, "daily")
}

// RunWeeklyReconcile walks every known asset and uploads whatever the bucket
// is missing. This catches uploads that failed past their retries.
func (r *Runner) RunWeeklyReconcile() (*BackupReport, error) {
	assets, err := r.assets.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list all assets: %w", err)
	}
	return r.uploadMissing(assets, "weekly reconcile")
}

func (r *Runner) uploadMissing(assets []models.MediaAsset, label string) (*BackupReport, error) {
	report := &BackupReport{Candidates: len(assets)}

	for i := range assets {
		asset := &assets[i]
		objectKey := r.config.GetObjectKey(asset.ContentHash, asset.StoragePath)

		exists, err := r.store.ObjectExists(objectKey)
		if err != nil {
			log.Errorf("[S3Backup] Existence check for %s failed: %v", objectKey, err)
			report.Failed++
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		if _, err := r.store.UploadFile(asset.StoragePath, objectKey); err != nil {
			log.Errorf("[S3Backup] Upload of asset %d failed: %v", asset.ID, err)
			report.Failed++
			continue
		}
		report.Uploaded++
	}

	log.Infof("[S3Backup] %s run: %d candidates, %d uploaded, %d skipped, %d failed",
		label, report.Candidates, report.Uploaded, report.Skipped, report.Failed)
	return report, nil
}
