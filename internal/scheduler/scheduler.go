// Package scheduler defers variant generation for fresh uploads.
//
// The platform keeps writing resized copies for a few seconds after an upload
// is registered, so conversion waits for a quiet period before it runs in
// skip-baseline mode.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/metrics"
	"avif-everywhere/internal/variant"
)

// DefaultDelay is how long an upload waits before it is converted.
const DefaultDelay = 15 * time.Second

// Converter runs a single conversion. *variant.Service implements it.
type Converter interface {
	Convert(ctx context.Context, assetID int64, mode variant.Mode) (*variant.Report, error)
}

// Scheduler runs one delayed skip-mode conversion per uploaded asset.
type Scheduler struct {
	conv     Converter
	settings variant.SettingsSource
	delay    time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[int64]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// New creates a Scheduler. A non-positive delay uses DefaultDelay.
func New(conv Converter, settings variant.SettingsSource, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		conv:     conv,
		settings: settings,
		delay:    delay,
		base:     base,
		cancel:   cancel,
		pending:  make(map[int64]*time.Timer),
	}
}

// ScheduleUpload queues a conversion for assetID after the delay. It reports
// false when nothing was queued: generation is disabled, the MIME type is not
// JPEG or PNG, the asset is already queued, or the scheduler is stopped.
func (s *Scheduler) ScheduleUpload(ctx context.Context, assetID int64, mime string) bool {
	if !variant.IsSourceMIME(mime) {
		logging.Debug("Not scheduling asset %d: unsupported type %s", assetID, mime)
		return false
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		logging.Warn("Not scheduling asset %d: %v", assetID, err)
		return false
	}
	if !settings.Enabled {
		metrics.SchedulerRunsTotal.WithLabelValues("skipped").Inc()
		logging.Debug("Not scheduling asset %d: generation disabled", assetID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.pending[assetID]; ok {
		logging.Debug("Asset %d already scheduled", assetID)
		return false
	}

	s.pending[assetID] = time.AfterFunc(s.delay, func() { s.fire(assetID) })
	metrics.SchedulerPending.Set(float64(len(s.pending)))
	logging.Debug("Scheduled asset %d in %v", assetID, s.delay)
	return true
}

func (s *Scheduler) fire(assetID int64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, assetID)
	metrics.SchedulerPending.Set(float64(len(s.pending)))
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	s.run(assetID)
}

func (s *Scheduler) run(assetID int64) {
	ctx := variant.NewSession(s.base)

	_, err := s.conv.Convert(ctx, assetID, variant.ModeSkip)
	switch {
	case err == nil:
		metrics.SchedulerRunsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, variant.ErrDisabled):
		metrics.SchedulerRunsTotal.WithLabelValues("skipped").Inc()
	default:
		metrics.SchedulerRunsTotal.WithLabelValues("error").Inc()
		logging.Warn("Upload conversion for asset %d failed: %s", assetID, variant.Reason(err))
	}
}

// Cancel drops a pending conversion, for example when the asset is deleted
// before its timer fires. It reports whether one was pending.
func (s *Scheduler) Cancel(assetID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[assetID]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.pending, assetID)
	metrics.SchedulerPending.Set(float64(len(s.pending)))
	return true
}

// Pending returns the number of queued conversions.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending timer and waits for running conversions. If ctx
// ends first, running conversions are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	metrics.SchedulerPending.Set(0)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
