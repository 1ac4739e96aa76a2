package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	stats Stats
	err   error
	calls atomic.Int32
}

func (m *mockStatsProvider) GetStats(_ context.Context) (Stats, error) {
	m.calls.Add(1)
	return m.stats, m.err
}

func TestCollectorCollectUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		TotalAssets:  12,
		AVIFVariants: 7,
		WebPVariants: 11,
		AVIFBytes:    700_000,
		WebPBytes:    1_100_000,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(LibraryAssetsTotal); got != 12 {
		t.Errorf("LibraryAssetsTotal = %v, want 12", got)
	}
	if got := testutil.ToFloat64(LibraryVariantsTotal.WithLabelValues("avif")); got != 7 {
		t.Errorf("avif variants = %v, want 7", got)
	}
	if got := testutil.ToFloat64(LibraryVariantBytes.WithLabelValues("webp")); got != 1_100_000 {
		t.Errorf("webp bytes = %v, want 1100000", got)
	}
}

func TestCollectorCollectErrorKeepsPreviousValues(t *testing.T) {
	LibraryAssetsTotal.Set(3)

	provider := &mockStatsProvider{err: errors.New("db closed")}
	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(LibraryAssetsTotal); got != 3 {
		t.Errorf("LibraryAssetsTotal = %v, want unchanged 3", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect() // must not panic
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.calls.Load() < 2 {
		t.Errorf("expected at least 2 collections, got %d", provider.calls.Load())
	}
}

func TestInitializeMetricsIsIdempotent(t *testing.T) {
	InitializeMetrics()
	InitializeMetrics()

	if got := testutil.ToFloat64(TranscodeAttemptsTotal.WithLabelValues("avif", "vips", "accepted")); got < 0 {
		t.Errorf("unexpected negative counter %v", got)
	}
}
