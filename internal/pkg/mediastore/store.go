package mediastore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/imroc/req/v3"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"github.com/lifeweave/lifeweave/app/models"
	"github.com/lifeweave/lifeweave/app/repository"
	"github.com/lifeweave/lifeweave/internal/pkg/env"
)

const (
	// DownloadTimeout bounds a single media fetch.
	DownloadTimeout = 30 * time.Second

	// MaxDownloadSize rejects absurdly large media before it hits disk.
	MaxDownloadSize = 100 << 20 // 100 MB
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// StorageError wraps a failed materialization with the source that caused it.
type StorageError struct {
	Op        string
	SourceURL string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("mediastore: %s %s: %v", e.Op, e.SourceURL, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store materializes remote media into content-addressed local files and
// keeps the media_assets table in sync. Two items referencing the same bytes
// share one asset row and one file.
type Store struct {
	assets  repository.MediaAssetRepository
	items   repository.ContentItemRepository
	http    *req.Client
	baseDir string
}

// NewStore creates a media store rooted at baseDir. An empty baseDir falls
// back to the MEDIA_STORAGE_PATH environment variable, then to
// "uploads/media".
func NewStore(assets repository.MediaAssetRepository, items repository.ContentItemRepository, baseDir string) *Store {
	if baseDir == "" {
		baseDir = env.GetEnv("MEDIA_STORAGE_PATH", "uploads/media")
	}
	return &Store{
		assets:  assets,
		items:   items,
		baseDir: baseDir,
		http: req.C().
			SetTimeout(DownloadTimeout).
			SetUserAgent("lifeweave/1.0"),
	}
}

// Materialize downloads the media behind sourceURL, deduplicates it by
// content hash and links the resulting asset to the content item. When the
// bytes are already known, no new file or row is created.
func (s *Store) Materialize(ctx context.Context, sourceURL string, contentItemID uint, declaredMime string) (*models.MediaAsset, error) {
	data, err := s.download(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	hash := HashBytes(data)

	// Known bytes short-circuit the write path entirely
	if existing, err := s.assets.GetByContentHash(hash); err == nil {
		log.Debugf("[MediaStore] Content hash %s already stored as asset %d", hash, existing.ID)
		if err := s.items.SetMediaAsset(contentItemID, existing.ID); err != nil {
			return nil, fmt.Errorf("link existing asset %d to item %d: %w", existing.ID, contentItemID, err)
		}
		return existing, nil
	} else if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("lookup content hash %s: %w", hash, err)
	}

	mimeType, err := resolveMimeType(declaredMime, data)
	if err != nil {
		return nil, &StorageError{Op: "validate", SourceURL: sourceURL, Err: err}
	}

	storagePath, err := s.writeFile(hash, extensionFor(mimeType, sourceURL), data)
	if err != nil {
		return nil, &StorageError{Op: "write", SourceURL: sourceURL, Err: err}
	}

	asset := &models.MediaAsset{
		ContentHash: hash,
		StoragePath: storagePath,
		SizeBytes:   int64(len(data)),
		MimeType:    mimeType,
	}

	if strings.HasPrefix(mimeType, "image/") {
		s.probeImage(asset, data, sourceURL)
	}

	if err := s.assets.Create(asset); err != nil {
		if repository.IsDuplicateKey(err) {
			// A concurrent worker stored the same bytes first; adopt its row
			existing, gerr := s.assets.GetByContentHash(hash)
			if gerr != nil {
				return nil, fmt.Errorf("adopt concurrent asset for hash %s: %w", hash, gerr)
			}
			asset = existing
		} else {
			return nil, fmt.Errorf("create media asset: %w", err)
		}
	}

	if err := s.items.SetMediaAsset(contentItemID, asset.ID); err != nil {
		return nil, fmt.Errorf("link asset %d to item %d: %w", asset.ID, contentItemID, err)
	}

	return asset, nil
}

// download fetches the media bytes with the store's timeout and size cap.
func (s *Store) download(ctx context.Context, sourceURL string) ([]byte, error) {
	resp, err := s.http.R().SetContext(ctx).Get(sourceURL)
	if err != nil {
		return nil, &StorageError{Op: "download", SourceURL: sourceURL, Err: err}
	}
	if !resp.IsSuccessState() {
		return nil, &StorageError{
			Op:        "download",
			SourceURL: sourceURL,
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	data := resp.Bytes()
	if len(data) == 0 {
		return nil, &StorageError{Op: "download", SourceURL: sourceURL, Err: fmt.Errorf("empty response body")}
	}
	if len(data) > MaxDownloadSize {
		return nil, &StorageError{Op: "download", SourceURL: sourceURL, Err: fmt.Errorf("body exceeds %d bytes", MaxDownloadSize)}
	}
	return data, nil
}

// writeFile stores data under the content-addressed path and returns the
// relative storage path. An existing file for the same hash is left alone.
func (s *Store) writeFile(hash, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	fileName := hash + ext
	fullPath := filepath.Join(s.baseDir, fileName)

	if _, err := os.Stat(fullPath); err == nil {
		return fullPath, nil
	}

	// Write via temp file so a crash never leaves a truncated asset behind
	tmp, err := os.CreateTemp(s.baseDir, "."+fileName+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	return fullPath, nil
}

// probeImage fills in dimensions and logs EXIF presence. Neither step is
// fatal: a corrupt image still gets stored, just without metadata.
func (s *Store) probeImage(asset *models.MediaAsset, data []byte, sourceURL string) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warnf("[MediaStore] Could not decode image from %s: %v", sourceURL, err)
		return
	}
	bounds := img.Bounds()
	asset.Width = bounds.Dx()
	asset.Height = bounds.Dy()

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		if model, err := x.Get(exif.Model); err == nil {
			log.Debugf("[MediaStore] EXIF camera model for %s: %s", asset.ContentHash, strings.Trim(model.String(), `"`))
		}
	}
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// extensionFor picks a file extension from the MIME type, falling back to
// whatever the source URL carries.
func extensionFor(mimeType, sourceURL string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(mimeType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(mimeType, "video/mp4"):
		return ".mp4"
	}
	if ext := filepath.Ext(strings.SplitN(sourceURL, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return strings.ToLower(ext)
	}
	return ".bin"
}
