package s3backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
)

type fakeObjectStore struct {
	existing  map[string]bool
	uploadErr map[string]error
	uploads   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{existing: map[string]bool{}, uploadErr: map[string]error{}}
}

func (s *fakeObjectStore) UploadFile(localFilePath, objectKey string) (*UploadResult, error) {
	if err, ok := s.uploadErr[objectKey]; ok {
		return nil, err
	}
	s.uploads = append(s.uploads, objectKey)
	s.existing[objectKey] = true
	return &UploadResult{ObjectKey: objectKey}, nil
}

func (s *fakeObjectStore) ObjectExists(objectKey string) (bool, error) {
	return s.existing[objectKey], nil
}

type fakeAssetLister struct {
	recent  []models.MediaAsset
	all     []models.MediaAsset
	listErr error
}

func (r *fakeAssetLister) Create(*models.MediaAsset) error { return nil }
func (r *fakeAssetLister) GetByID(uint) (*models.MediaAsset, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeAssetLister) GetByContentHash(string) (*models.MediaAsset, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeAssetLister) ListUnoptimizedForUser(uint) ([]models.MediaAsset, error) {
	return nil, nil
}

func (r *fakeAssetLister) ListCreatedSince(time.Time) ([]models.MediaAsset, error) {
	return r.recent, r.listErr
}

func (r *fakeAssetLister) ListAll() ([]models.MediaAsset, error) {
	return r.all, r.listErr
}

func (r *fakeAssetLister) MarkOptimized(uint) error { return nil }

var _ repository.MediaAssetRepository = (*fakeAssetLister)(nil)

func asset(id uint, hash, path string) models.MediaAsset {
	return models.MediaAsset{ID: id, ContentHash: hash, StoragePath: path}
}

func TestRunDailyUploadsRecentAssets(t *testing.T) {
	store := newFakeObjectStore()
	lister := &fakeAssetLister{recent: []models.MediaAsset{
		asset(1, "aaa", "/data/aaa.jpg"),
		asset(2, "bbb", "/data/bbb.png"),
	}}
	runner := NewRunner(store, &Config{BucketName: "backups"}, lister)

	report, err := runner.RunDaily()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Uploaded)
	assert.ElementsMatch(t, []string{"media/aaa.jpg", "media/bbb.png"}, store.uploads)
}

func TestRunDailySkipsAlreadyBackedUp(t *testing.T) {
	store := newFakeObjectStore()
	store.existing["media/aaa.jpg"] = true
	lister := &fakeAssetLister{recent: []models.MediaAsset{
		asset(1, "aaa", "/data/aaa.jpg"),
	}}
	runner := NewRunner(store, &Config{BucketName: "backups"}, lister)

	report, err := runner.RunDaily()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Uploaded)
	assert.Empty(t, store.uploads)
}

func TestRunDailyFailureIsolation(t *testing.T) {
	store := newFakeObjectStore()
	store.uploadErr["media/bad.jpg"] = errors.New("network down")
	lister := &fakeAssetLister{recent: []models.MediaAsset{
		asset(1, "bad", "/data/bad.jpg"),
		asset(2, "good", "/data/good.jpg"),
	}}
	runner := NewRunner(store, &Config{BucketName: "backups"}, lister)

	report, err := runner.RunDaily()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, []string{"media/good.jpg"}, store.uploads)
}

func TestRunWeeklyReconcileUploadsOnlyMissing(t *testing.T) {
	store := newFakeObjectStore()
	store.existing["media/aaa.jpg"] = true
	lister := &fakeAssetLister{all: []models.MediaAsset{
		asset(1, "aaa", "/data/aaa.jpg"),
		asset(2, "bbb", "/data/bbb.webp"),
	}}
	runner := NewRunner(store, &Config{BucketName: "backups"}, lister)

	report, err := runner.RunWeeklyReconcile()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, []string{"media/bbb.webp"}, store.uploads)
}

func TestRunDailyListFailure(t *testing.T) {
	lister := &fakeAssetLister{listErr: errors.New("db down")}
	runner := NewRunner(newFakeObjectStore(), &Config{BucketName: "backups"}, lister)

	_, err := runner.RunDaily()
	assert.Error(t, err)
}

func TestGetObjectKey(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "media/abc.jpg", cfg.GetObjectKey("abc", "/uploads/media/abc.jpg"))
	assert.Equal(t, "media/abc", cfg.GetObjectKey("abc", "/uploads/media/abc"))
}
