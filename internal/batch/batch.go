package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"avif-everywhere/internal/database"
	"avif-everywhere/internal/filesystem"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/memory"
	"avif-everywhere/internal/metrics"
	"avif-everywhere/internal/variant"
	"avif-everywhere/internal/workers"
)

// Defaults match the admin screen's retroactive generator.
const (
	DefaultSize  = 5
	DefaultPause = 400 * time.Millisecond
)

// NoteAlreadyExists marks items skipped because their variants are on disk.
const NoteAlreadyExists = "already exists"

// ErrBusy is returned when a batch is already running.
var ErrBusy = errors.New("a batch is already running")

// Converter runs a single conversion. *variant.Service implements it.
type Converter interface {
	Convert(ctx context.Context, assetID int64, mode variant.Mode) (*variant.Report, error)
}

// Catalog lists assets. *database.Database implements it.
type Catalog interface {
	ListMissing(ctx context.Context) ([]database.MissingAsset, error)
	GetAssetPath(ctx context.Context, assetID int64) (string, error)
}

// Config controls chunking.
type Config struct {
	Size    int
	Pause   time.Duration
	Workers int
}

// DefaultConfig returns the stock chunk size and pause with one worker per CPU,
// capped at the chunk size.
func DefaultConfig() Config {
	return Config{
		Size:    DefaultSize,
		Pause:   DefaultPause,
		Workers: workers.ForCPU(DefaultSize),
	}
}

// Item is one successful entry in a Summary.
type Item struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	SizeKB    int64  `json:"sizeKb"`
	Quality   string `json:"quality,omitempty"`
	ResizeMax string `json:"resizeMax,omitempty"`
	Savings   *int   `json:"savings"`
	WebP      string `json:"webp,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Failure is one failed entry in a Summary.
type Failure struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason"`
}

// Summary is the result of Run.
type Summary struct {
	Success  []Item        `json:"success"`
	Failed   []Failure     `json:"failed"`
	Duration time.Duration `json:"durationNs"`
}

// Runner generates variants for many assets.
type Runner struct {
	conv    Converter
	catalog Catalog
	monitor *memory.Monitor
	config  Config

	running atomic.Bool
}

// NewRunner creates a Runner. monitor may be nil.
func NewRunner(conv Converter, catalog Catalog, monitor *memory.Monitor, config Config) *Runner {
	if config.Size <= 0 {
		config.Size = DefaultSize
	}
	if config.Pause < 0 {
		config.Pause = 0
	}
	if config.Workers <= 0 || config.Workers > config.Size {
		config.Workers = workers.ForCPU(config.Size)
	}
	return &Runner{
		conv:    conv,
		catalog: catalog,
		monitor: monitor,
		config:  config,
	}
}

// Running reports whether a batch is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Scan lists assets that still need a variant.
func (r *Runner) Scan(ctx context.Context) ([]database.MissingAsset, error) {
	missing, err := r.catalog.ListMissing(ctx)
	if err != nil {
		return nil, err
	}
	logging.Debug("Scan found %d assets missing variants", len(missing))
	return missing, nil
}

// Run converts ids in chunks, pausing between chunks. A failing item never
// stops the batch. Only ctx cancellation ends it early, returning the partial
// summary together with ctx.Err().
func (r *Runner) Run(ctx context.Context, ids []int64) (*Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.running.Store(false)

	metrics.BatchRunning.Set(1)
	defer metrics.BatchRunning.Set(0)

	start := time.Now()
	summary := &Summary{Success: []Item{}, Failed: []Failure{}}
	logging.Info("Batch started: %d assets, chunks of %d, %d workers", len(ids), r.config.Size, r.config.Workers)

	for offset := 0; offset < len(ids); offset += r.config.Size {
		if offset > 0 && r.config.Pause > 0 {
			select {
			case <-time.After(r.config.Pause):
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			return r.finish(summary, start), err
		}

		end := offset + r.config.Size
		if end > len(ids) {
			end = len(ids)
		}
		r.runChunk(ctx, ids[offset:end], summary)
	}

	if err := ctx.Err(); err != nil {
		return r.finish(summary, start), err
	}
	return r.finish(summary, start), nil
}

func (r *Runner) finish(summary *Summary, start time.Time) *Summary {
	summary.Duration = time.Since(start)
	metrics.BatchLastDuration.Set(summary.Duration.Seconds())
	logging.Info("Batch finished in %v: %d succeeded, %d failed",
		summary.Duration.Round(time.Millisecond), len(summary.Success), len(summary.Failed))
	return summary
}

type result struct {
	item    *Item
	failure *Failure
}

func (r *Runner) runChunk(ctx context.Context, ids []int64, summary *Summary) {
	results := make([]result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = r.process(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	// Slots left empty were never started because ctx ended.
	for _, res := range results {
		switch {
		case res.item != nil:
			summary.Success = append(summary.Success, *res.item)
		case res.failure != nil:
			summary.Failed = append(summary.Failed, *res.failure)
		}
	}
}

func (r *Runner) process(ctx context.Context, id int64) result {
	if r.monitor != nil {
		if err := r.monitor.Wait(ctx); err != nil && ctx.Err() != nil {
			return result{}
		}
	}
	if ctx.Err() != nil {
		return result{}
	}

	ctx = variant.NewSession(ctx)

	path, err := r.catalog.GetAssetPath(ctx, id)
	if err != nil {
		return r.fail(id, "", err)
	}
	filename := filepath.Base(path)

	if item, ok := existing(ctx, id, path); ok {
		metrics.BatchItemsTotal.WithLabelValues("existing").Inc()
		return result{item: item}
	}

	report, err := r.conv.Convert(ctx, id, variant.ModeCompare)
	if err != nil {
		if ctx.Err() != nil {
			return result{}
		}
		return r.fail(id, filename, err)
	}

	metrics.BatchItemsTotal.WithLabelValues("success").Inc()
	return result{item: itemFromReport(report)}
}

func (r *Runner) fail(id int64, filename string, err error) result {
	metrics.BatchItemsTotal.WithLabelValues("failed").Inc()
	reason := variant.Reason(err)
	if errors.Is(err, variant.ErrAssetNotFound) {
		reason = "asset not found"
	}
	logging.Debug("Batch item %d failed: %v", id, err)
	return result{failure: &Failure{ID: id, Filename: filename, Reason: reason}}
}

// existing reports assets whose source already has both variant files on
// disk, regardless of what the catalog recorded. The source is the unscaled
// original when it exists and the registered file otherwise, matching where
// conversions write.
func existing(ctx context.Context, id int64, path string) (*Item, bool) {
	cache := variant.SessionCache(ctx)
	source := variant.UnscaledPath(path)
	if source != path && !cache.Exists(source) {
		source = path
	}

	avifPath, ok := variant.VariantPath(source, variant.FormatAVIF)
	if !ok || !cache.Exists(avifPath) {
		return nil, false
	}
	webpPath, _ := variant.VariantPath(source, variant.FormatWebP)
	if !cache.Exists(webpPath) {
		return nil, false
	}

	item := &Item{
		ID:       id,
		Filename: filepath.Base(avifPath),
		WebP:     filepath.Base(webpPath),
		Note:     NoteAlreadyExists,
	}
	if info, err := filesystem.StatWithRetry(avifPath, filesystem.DefaultRetryConfig()); err == nil {
		item.SizeKB = kilobytes(info.Size())
	}
	return item, true
}

func itemFromReport(report *variant.Report) *Item {
	item := &Item{ID: report.AssetID, Filename: report.Filename}
	if report.AVIF != nil {
		item.Filename = filepath.Base(report.AVIF.Path)
		item.SizeKB = kilobytes(report.AVIF.Bytes)
		item.Quality = report.AVIF.Quality
		item.ResizeMax = report.AVIF.Resize
		item.Savings = report.AVIF.SavingsPercent
	} else if report.WebP != nil {
		item.Filename = filepath.Base(report.WebP.Path)
		item.SizeKB = kilobytes(report.WebP.Bytes)
		item.Quality = report.WebP.Quality
		item.ResizeMax = report.WebP.Resize
		item.Savings = report.WebP.SavingsPercent
	}
	if report.WebP != nil {
		item.WebP = filepath.Base(report.WebP.Path)
	}
	return item
}

func kilobytes(n int64) int64 {
	return (n + 512) / 1024
}
