package variant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type serviceFixture struct {
	svc      *Service
	store    *memStore
	lib      *fakeEncoder
	settings *fakeSettings
	dir      string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dir := t.TempDir()

	original := filepath.Join(dir, "photo.jpg")
	writeJPEG(t, original, 96, 64)
	writeSized(t, filepath.Join(dir, "photo-scaled.jpg"), 20000)

	lib := newFakeEncoder("vips", FormatAVIF, FormatWebP)
	lib.sizes[FormatAVIF] = []int64{12000}
	lib.sizes[FormatWebP] = []int64{15000}

	store := newMemStore()
	settings := &fakeSettings{settings: Settings{Enabled: true}}
	chain := NewChain(Capabilities{AVIFSupported: true, WebPSupported: true}, nil, lib, DefaultAVIFMinSavings)
	svc := NewService(
		fakeAssets{1: filepath.Join(dir, "photo-scaled.jpg")},
		settings,
		NewLocator(),
		chain,
		NewRecorder(store, dir, testBaseURL),
	)
	return &serviceFixture{svc: svc, store: store, lib: lib, settings: settings, dir: dir}
}

func TestServiceConvert(t *testing.T) {
	f := newServiceFixture(t)

	report, err := f.svc.Convert(context.Background(), 1, ModeCompare)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if report.Filename != "photo.jpg" {
		t.Errorf("Filename = %q, want the original", report.Filename)
	}
	if report.Baseline.Origin != OriginScaledSibling || report.Baseline.Bytes != 20000 {
		t.Errorf("Baseline = %+v", report.Baseline)
	}
	if report.AVIF == nil || report.WebP == nil {
		t.Fatalf("report = %+v, want both formats", report)
	}
	if report.AVIF.URL != testBaseURL+"/photo.avif" {
		t.Errorf("AVIF URL = %q", report.AVIF.URL)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "photo.avif")); err != nil {
		t.Errorf("avif file missing: %v", err)
	}
	if left := tempFiles(t, f.dir); len(left) != 0 {
		t.Errorf("temp files left: %v", left)
	}

	recs, _ := f.svc.Variants(context.Background(), 1)
	if len(recs) != 2 {
		t.Errorf("Variants() = %d records, want 2", len(recs))
	}
}

func TestServiceDisabled(t *testing.T) {
	f := newServiceFixture(t)
	f.settings.settings.Enabled = false

	_, err := f.svc.Convert(context.Background(), 1, ModeSkip)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Convert() error = %v, want ErrDisabled", err)
	}
	if len(f.lib.calls) != 0 {
		t.Error("engine must not run while disabled")
	}
}

func TestServiceMaxBytesFromSettings(t *testing.T) {
	f := newServiceFixture(t)
	f.settings.settings.MaxVariantBytes = 13000

	report, err := f.svc.Convert(context.Background(), 1, ModeSkip)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if report.AVIF == nil {
		t.Error("AVIF under the cap should be kept")
	}
	if report.WebP != nil {
		t.Error("WebP over the cap should be rejected")
	}
	if report.Skipped[FormatWebP] == "" {
		t.Error("WebP rejection reason missing")
	}
}

func TestServiceUnknownAsset(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Convert(context.Background(), 404, ModeCompare)
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Convert() error = %v, want ErrAssetNotFound", err)
	}
}

func TestServicePurge(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Convert(ctx, 1, ModeSkip); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	removed, err := f.svc.Purge(ctx, 1)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Purge() removed %d files, want 2", removed)
	}

	// Unknown assets still clear whatever records exist.
	if err := f.store.UpsertVariant(ctx, VariantRecord{AssetID: 77, Format: FormatWebP, Path: filepath.Join(f.dir, "x.webp")}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Purge(ctx, 77); err != nil {
		t.Fatalf("Purge(unknown) error = %v", err)
	}
	if recs, _ := f.store.GetVariants(ctx, 77); len(recs) != 0 {
		t.Errorf("records left for unknown asset: %v", recs)
	}
}

// waiters reports how many callers hold or wait for the asset's slot.
func (l *assetLocks) waiters(assetID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot := l.slots[assetID]; slot != nil {
		return slot.refs
	}
	return 0
}

// gatedEncoder holds its first Encode call until gate is closed.
type gatedEncoder struct {
	*fakeEncoder
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedEncoder) Encode(ctx context.Context, src *SourceImage, format Format, attempt AttemptSpec, dst string) (*Candidate, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	return g.fakeEncoder.Encode(ctx, src, format, attempt, dst)
}

func TestServiceConvertKeepsModesApart(t *testing.T) {
	f := newServiceFixture(t)
	// 19000 passes in skip mode but misses 0.8 x 20000 in compare mode.
	f.lib.sizes[FormatAVIF] = []int64{19000}
	gated := &gatedEncoder{fakeEncoder: f.lib, entered: make(chan struct{}), gate: make(chan struct{})}
	f.svc.chain = NewChain(Capabilities{AVIFSupported: true, WebPSupported: true}, nil, gated, DefaultAVIFMinSavings)

	ctx := context.Background()
	type result struct {
		report *Report
		err    error
	}
	skipDone := make(chan result, 1)
	go func() {
		r, err := f.svc.Convert(ctx, 1, ModeSkip)
		skipDone <- result{r, err}
	}()
	<-gated.entered

	compareDone := make(chan result, 1)
	go func() {
		r, err := f.svc.Convert(ctx, 1, ModeCompare)
		compareDone <- result{r, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.svc.locks.waiters(1) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("compare run never queued behind the skip run")
		}
		time.Sleep(time.Millisecond)
	}
	close(gated.gate)

	skip := <-skipDone
	if skip.err != nil {
		t.Fatalf("skip Convert() error = %v", skip.err)
	}
	if skip.report.Mode != ModeSkip || skip.report.AVIF == nil {
		t.Errorf("skip report = %+v, want an AVIF", skip.report)
	}

	cmp := <-compareDone
	if cmp.err != nil {
		t.Fatalf("compare Convert() error = %v", cmp.err)
	}
	if cmp.report.Mode != ModeCompare || cmp.report.Baseline.Origin != OriginScaledSibling {
		t.Errorf("compare report mode=%s baseline=%+v", cmp.report.Mode, cmp.report.Baseline)
	}
	if cmp.report.AVIF != nil && cmp.report.AVIF.Bytes >= 16000 {
		t.Errorf("compare run accepted AVIF of %d bytes against a 20000-byte baseline", cmp.report.AVIF.Bytes)
	}

	// The compare run rejected AVIF, so the skip run's AVIF is gone.
	recs, _ := f.svc.Variants(ctx, 1)
	for _, rec := range recs {
		if rec.Format == FormatAVIF {
			t.Errorf("stale AVIF record kept: %+v", rec)
		}
	}
	if n := f.svc.locks.waiters(1); n != 0 {
		t.Errorf("slot still referenced by %d callers", n)
	}
}

func TestServicePurgeHonoursContextWhileAssetBusy(t *testing.T) {
	f := newServiceFixture(t)
	release, err := f.svc.locks.acquire(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.svc.Purge(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Purge() error = %v, want context.Canceled while a run holds the asset", err)
	}
}
