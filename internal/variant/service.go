package variant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/metrics"
)

// AssetSource resolves asset ids to file paths.
type AssetSource interface {
	// GetAssetPath returns ErrAssetNotFound for unknown ids.
	GetAssetPath(ctx context.Context, assetID int64) (string, error)
}

// Settings are the operator switches read on every conversion.
type Settings struct {
	Enabled bool `json:"enabled"`
	// MaxVariantBytes caps a single variant file. Zero means no cap.
	MaxVariantBytes int64 `json:"maxVariantBytes"`
}

// SettingsSource supplies the current Settings.
type SettingsSource interface {
	GetSettings(ctx context.Context) (Settings, error)
}

// Report summarises one conversion.
type Report struct {
	AssetID  int64             `json:"assetId"`
	Filename string            `json:"filename"`
	Mode     Mode              `json:"mode"`
	Source   *SourceImage      `json:"source"`
	Baseline Baseline          `json:"baseline"`
	AVIF     *VariantRecord    `json:"avif,omitempty"`
	WebP     *VariantRecord    `json:"webp,omitempty"`
	Skipped  map[Format]string `json:"skipped,omitempty"`
	Duration time.Duration     `json:"durationNs"`
}

// Service wires the engine stages together for a single asset.
type Service struct {
	assets   AssetSource
	settings SettingsSource
	locator  *Locator
	chain    *Chain
	recorder *Recorder

	flight singleflight.Group
	locks  assetLocks
}

// NewService creates a Service.
func NewService(assets AssetSource, settings SettingsSource, locator *Locator, chain *Chain, recorder *Recorder) *Service {
	return &Service{
		assets:   assets,
		settings: settings,
		locator:  locator,
		chain:    chain,
		recorder: recorder,
	}
}

// Capabilities returns the encoder capabilities the chain was built with.
func (s *Service) Capabilities() Capabilities {
	return s.chain.Caps
}

// Convert generates variants for one asset. Concurrent calls for the same
// asset and mode share a single run. Runs in different modes wait for each
// other, so a compare-mode caller never sees a skip-mode result.
func (s *Service) Convert(ctx context.Context, assetID int64, mode Mode) (*Report, error) {
	key := strconv.FormatInt(assetID, 10) + ":" + string(mode)
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		release, err := s.locks.acquire(ctx, assetID)
		if err != nil {
			return nil, err
		}
		defer release()
		return s.convert(ctx, assetID, mode)
	})
	if shared {
		logging.Debug("Joined in-flight %s conversion for asset %d", mode, assetID)
	}
	report, _ := v.(*Report)
	return report, err
}

func (s *Service) convert(ctx context.Context, assetID int64, mode Mode) (*Report, error) {
	start := time.Now()

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		metrics.TranscodeAssetsTotal.WithLabelValues(string(mode), "failed").Inc()
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Enabled {
		metrics.TranscodeAssetsTotal.WithLabelValues(string(mode), "disabled").Inc()
		return nil, ErrDisabled
	}

	if SessionCache(ctx) == nil {
		ctx = NewSession(ctx)
	}

	report, err := s.run(ctx, assetID, mode, settings)
	if err != nil {
		metrics.TranscodeAssetsTotal.WithLabelValues(string(mode), "failed").Inc()
		logging.Warn("Conversion failed for asset %d: %v", assetID, err)
		return report, err
	}

	report.Duration = time.Since(start)
	metrics.TranscodeAssetsTotal.WithLabelValues(string(mode), "success").Inc()
	logging.Info("Converted asset %d (%s) in %v", assetID, report.Filename, report.Duration.Round(time.Millisecond))
	return report, nil
}

func (s *Service) run(ctx context.Context, assetID int64, mode Mode, settings Settings) (*Report, error) {
	path, err := s.assets.GetAssetPath(ctx, assetID)
	if err != nil {
		return nil, err
	}

	src, err := s.locator.Locate(ctx, path)
	if err != nil {
		return nil, err
	}

	baseline, err := ResolveBaseline(ctx, src, mode)
	if err != nil {
		return nil, err
	}

	out, err := s.chain.WithMaxBytes(settings.MaxVariantBytes).TranscodeAsset(ctx, src, baseline)
	if err != nil {
		return nil, err
	}

	records, err := s.recorder.Record(ctx, assetID, out, baseline)
	if len(records) == 0 {
		if err == nil {
			err = newError(KindExhausted, "record", src.Path, nil)
		}
		return nil, err
	}
	if err != nil {
		logging.Warn("Asset %d only partially recorded: %v", assetID, err)
	}

	report := &Report{
		AssetID:  assetID,
		Filename: filepath.Base(src.Path),
		Mode:     mode,
		Source:   src,
		Baseline: baseline,
		Skipped:  out.Skipped,
	}
	for i := range records {
		rec := records[i]
		switch rec.Format {
		case FormatAVIF:
			report.AVIF = &rec
		case FormatWebP:
			report.WebP = &rec
		}
	}
	return report, nil
}

// Variants returns the stored records for an asset.
func (s *Service) Variants(ctx context.Context, assetID int64) ([]VariantRecord, error) {
	return s.recorder.Store.GetVariants(ctx, assetID)
}

// Purge removes all variant files and records for an asset. An asset that is
// already gone still has its records cleared.
func (s *Service) Purge(ctx context.Context, assetID int64) (int, error) {
	path, err := s.assets.GetAssetPath(ctx, assetID)
	if err != nil {
		if !errors.Is(err, ErrAssetNotFound) {
			return 0, err
		}
		path = ""
	}
	if SessionCache(ctx) == nil {
		ctx = NewSession(ctx)
	}

	release, err := s.locks.acquire(ctx, assetID)
	if err != nil {
		return 0, err
	}
	defer release()
	return s.recorder.Purge(ctx, assetID, path)
}

// assetLocks hands out one slot per asset. Slots are dropped once nobody holds
// or waits for them.
type assetLocks struct {
	mu    sync.Mutex
	slots map[int64]*assetSlot
}

type assetSlot struct {
	ch   chan struct{}
	refs int
}

// acquire blocks until the asset's slot is free or ctx ends.
func (l *assetLocks) acquire(ctx context.Context, assetID int64) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[int64]*assetSlot)
	}
	slot := l.slots[assetID]
	if slot == nil {
		slot = &assetSlot{ch: make(chan struct{}, 1)}
		l.slots[assetID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(assetID, slot)
		return nil, ctx.Err()
	}
	return func() {
		<-slot.ch
		l.unref(assetID, slot)
	}, nil
}

func (l *assetLocks) unref(assetID int64, slot *assetSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, assetID)
	}
}
