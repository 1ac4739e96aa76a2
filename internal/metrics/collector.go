package metrics

import (
	"context"
	"time"

	"avif-everywhere/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current library statistics
type Stats struct {
	TotalAssets  int
	AVIFVariants int
	WebPVariants int
	AVIFBytes    int64
	WebPBytes    int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryAssetsTotal.Set(float64(stats.TotalAssets))
	LibraryVariantsTotal.WithLabelValues("avif").Set(float64(stats.AVIFVariants))
	LibraryVariantsTotal.WithLabelValues("webp").Set(float64(stats.WebPVariants))
	LibraryVariantBytes.WithLabelValues("avif").Set(float64(stats.AVIFBytes))
	LibraryVariantBytes.WithLabelValues("webp").Set(float64(stats.WebPBytes))

	logging.Debug("Metrics collected: assets=%d, avif=%d, webp=%d",
		stats.TotalAssets, stats.AVIFVariants, stats.WebPVariants)
}
