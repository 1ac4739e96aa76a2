package variant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"avif-everywhere/internal/filesystem"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/metrics"
)

// VariantStore persists variant records. internal/database implements it.
type VariantStore interface {
	UpsertVariant(ctx context.Context, rec VariantRecord) error
	GetVariants(ctx context.Context, assetID int64) ([]VariantRecord, error)
	DeleteVariants(ctx context.Context, assetID int64) error
	DeleteVariant(ctx context.Context, assetID int64, format Format) error
}

// Recorder promotes accepted candidates to their final paths and keeps the
// store in sync with the files on disk.
type Recorder struct {
	Store      VariantStore
	UploadsDir string
	BaseURL    string

	retry filesystem.RetryConfig
}

// NewRecorder creates a Recorder rooted at uploadsDir.
func NewRecorder(store VariantStore, uploadsDir, baseURL string) *Recorder {
	return &Recorder{
		Store:      store,
		UploadsDir: filepath.Clean(uploadsDir),
		BaseURL:    strings.TrimRight(baseURL, "/"),
		retry:      filesystem.DefaultRetryConfig(),
	}
}

// URLFor maps a file under UploadsDir to its public URL.
func (r *Recorder) URLFor(path string) (string, error) {
	rel, err := filepath.Rel(r.UploadsDir, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the uploads directory", path)
	}
	return r.BaseURL + "/" + filepath.ToSlash(rel), nil
}

// PathFor maps a public URL back to a file under UploadsDir. Query strings and
// fragments are ignored.
func (r *Recorder) PathFor(url string) (string, bool) {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	prefix := r.BaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	rel := filepath.FromSlash(strings.TrimPrefix(url, prefix))
	path := filepath.Join(r.UploadsDir, rel)
	if _, err := r.URLFor(path); err != nil {
		return "", false
	}
	return path, true
}

// Record promotes every candidate in out and upserts its record. A candidate
// that cannot be promoted or stored is removed; the others are still kept.
// When at least one variant was recorded, an earlier variant of a format this
// run skipped is dropped along with its file.
func (r *Recorder) Record(ctx context.Context, assetID int64, out *Outcome, baseline Baseline) ([]VariantRecord, error) {
	var (
		records []VariantRecord
		errs    []error
	)
	for _, cand := range out.Candidates() {
		rec, err := r.promote(ctx, assetID, cand, baseline)
		if err != nil {
			logging.Error("Failed to record %s variant for asset %d: %v", cand.Format, assetID, err)
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) > 0 && len(out.Skipped) > 0 {
		if err := r.dropStale(ctx, assetID, out.Skipped); err != nil {
			errs = append(errs, err)
		}
	}
	return records, errors.Join(errs...)
}

func (r *Recorder) dropStale(ctx context.Context, assetID int64, skipped map[Format]string) error {
	recs, err := r.Store.GetVariants(ctx, assetID)
	if err != nil {
		return fmt.Errorf("list variants for asset %d: %w", assetID, err)
	}
	var errs []error
	for _, rec := range recs {
		reason, ok := skipped[rec.Format]
		if !ok {
			continue
		}
		if _, err := filesystem.RemoveIfExists(rec.Path, r.retry); err != nil {
			errs = append(errs, err)
			continue
		}
		forget(ctx, rec.Path)
		if err := r.Store.DeleteVariant(ctx, assetID, rec.Format); err != nil {
			errs = append(errs, fmt.Errorf("delete %s record for asset %d: %w", rec.Format, assetID, err))
			continue
		}
		metrics.VariantFilesRemoved.Inc()
		logging.Info("Dropped earlier %s variant %s: %s", rec.Format, filepath.Base(rec.Path), reason)
	}
	return errors.Join(errs...)
}

func (r *Recorder) promote(ctx context.Context, assetID int64, cand *Candidate, baseline Baseline) (VariantRecord, error) {
	final := strings.TrimSuffix(cand.TempPath, TempSuffix)
	defer forget(ctx, final, cand.TempPath)

	url, err := r.URLFor(final)
	if err != nil {
		cand.Discard()
		return VariantRecord{}, err
	}

	if err := os.Rename(cand.TempPath, final); err != nil {
		cand.Discard()
		return VariantRecord{}, fmt.Errorf("promote %s: %w", filepath.Base(final), err)
	}

	rec := VariantRecord{
		AssetID:        assetID,
		Format:         cand.Format,
		Path:           final,
		URL:            url,
		Bytes:          cand.Bytes,
		Quality:        cand.Attempt.QualityLabel(),
		Resize:         cand.Attempt.ResizeLabel(),
		SavingsPercent: savingsPercent(cand.Bytes, baseline),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := r.Store.UpsertVariant(ctx, rec); err != nil {
		if rmErr := os.Remove(final); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("failed to remove unrecorded variant %s: %v", final, rmErr)
		}
		return VariantRecord{}, fmt.Errorf("store %s variant: %w", cand.Format, err)
	}

	metrics.VariantsRecordedTotal.WithLabelValues(string(cand.Format)).Inc()
	if !baseline.Skipped() && cand.Bytes < baseline.Bytes {
		metrics.VariantBytesSaved.WithLabelValues(string(cand.Format)).Add(float64(baseline.Bytes - cand.Bytes))
	}
	logging.Info("Saved %s variant %s (%d bytes, quality %s, resize %s)",
		cand.Format, filepath.Base(final), rec.Bytes, rec.Quality, rec.Resize)
	return rec, nil
}

// savingsPercent is 100 minus the candidate size as a rounded percentage of
// the baseline. It is nil when the baseline was skipped.
func savingsPercent(bytes int64, baseline Baseline) *int {
	if baseline.Skipped() || baseline.Bytes <= 0 {
		return nil
	}
	pct := 100 - int(math.Round(float64(bytes)/float64(baseline.Bytes)*100))
	return &pct
}

// Purge removes every variant file that may exist for the asset, under both
// the scaled and unscaled source names and any recorded path, then deletes
// the records. Missing files are not an error, so Purge can run repeatedly.
func (r *Recorder) Purge(ctx context.Context, assetID int64, assetPath string) (int, error) {
	var paths []string
	if assetPath != "" {
		paths = PurgeCandidates(assetPath)
	}

	recs, err := r.Store.GetVariants(ctx, assetID)
	if err != nil {
		metrics.VariantPurgesTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list variants for asset %d: %w", assetID, err)
	}
	for _, rec := range recs {
		paths = append(paths, rec.Path)
	}

	removed := 0
	seen := make(map[string]bool)
	var errs []error
	for _, p := range paths {
		for _, candidate := range []string{p, TempPath(p)} {
			if seen[candidate] {
				continue
			}
			seen[candidate] = true

			ok, err := filesystem.RemoveIfExists(candidate, r.retry)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				removed++
				metrics.VariantFilesRemoved.Inc()
				logging.Debug("Removed variant %s", candidate)
			}
		}
		forget(ctx, p, TempPath(p))
	}

	if err := r.Store.DeleteVariants(ctx, assetID); err != nil {
		errs = append(errs, fmt.Errorf("delete variant records for asset %d: %w", assetID, err))
	}

	if err := errors.Join(errs...); err != nil {
		metrics.VariantPurgesTotal.WithLabelValues("error").Inc()
		return removed, err
	}
	metrics.VariantPurgesTotal.WithLabelValues("success").Inc()
	if removed > 0 {
		logging.Info("Purged %d variant file(s) for asset %d", removed, assetID)
	}
	return removed, nil
}
