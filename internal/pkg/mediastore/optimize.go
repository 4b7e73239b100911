package mediastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const webpQuality = 85

// OptimizeReport summarizes one optimization batch.
type OptimizeReport struct {
	Candidates int `json:"candidates"`
	Optimized  int `json:"optimized"`
	Failed     int `json:"failed"`
}

// OptimizeUserAssets re-encodes every unoptimized image asset referenced by
// the user's content as lossy WebP next to the original. A failure on one
// asset does not stop the batch.
func (s *Store) OptimizeUserAssets(userID uint) (OptimizeReport, error) {
	assets, err := s.assets.ListUnoptimizedForUser(userID)
	if err != nil {
		return OptimizeReport{}, fmt.Errorf("list unoptimized assets: %w", err)
	}

	report := OptimizeReport{Candidates: len(assets)}
	for i := range assets {
		asset := &assets[i]
		if err := s.optimizeOne(asset.StoragePath); err != nil {
			log.Errorf("[MediaStore] Optimize asset %d failed: %v", asset.ID, err)
			report.Failed++
			continue
		}
		if err := s.assets.MarkOptimized(asset.ID); err != nil {
			log.Errorf("[MediaStore] Mark asset %d optimized failed: %v", asset.ID, err)
			report.Failed++
			continue
		}
		report.Optimized++
	}

	log.Infof("[MediaStore] Optimized %d/%d assets for user %d", report.Optimized, report.Candidates, userID)
	return report, nil
}

// optimizeOne writes a WebP variant alongside the original file.
func (s *Store) optimizeOne(storagePath string) error {
	img, err := imaging.Open(storagePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", storagePath, err)
	}

	outPath := webpVariantPath(storagePath)
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return fmt.Errorf("encoder options: %w", err)
	}
	if err := webp.Encode(out, img, options); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("encode webp: %w", err)
	}

	return nil
}

func webpVariantPath(storagePath string) string {
	ext := filepath.Ext(storagePath)
	return strings.TrimSuffix(storagePath, ext) + ".webp"
}
