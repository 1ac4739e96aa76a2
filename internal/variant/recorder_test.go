package variant

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testBaseURL = "https://example.test/wp-content/uploads"

func newTestRecorder(t *testing.T) (*Recorder, *memStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := newMemStore()
	return NewRecorder(store, dir, testBaseURL+"/"), store, dir
}

// stagedCandidate writes a temp file the way an encoder would.
func stagedCandidate(t *testing.T, src string, format Format, size int, attempt AttemptSpec) *Candidate {
	t.Helper()
	final, ok := VariantPath(src, format)
	if !ok {
		t.Fatalf("VariantPath(%q) failed", src)
	}
	writeSized(t, TempPath(final), size)
	return &Candidate{Format: format, Bytes: int64(size), TempPath: TempPath(final), Attempt: attempt, Encoder: "fake"}
}

func TestRecorderURLFor(t *testing.T) {
	rec, _, dir := newTestRecorder(t)

	url, err := rec.URLFor(filepath.Join(dir, "2024", "05", "photo.avif"))
	if err != nil {
		t.Fatalf("URLFor() error = %v", err)
	}
	if want := testBaseURL + "/2024/05/photo.avif"; url != want {
		t.Errorf("URLFor() = %q, want %q", url, want)
	}

	for _, outside := range []string{filepath.Dir(dir), dir, filepath.Join(dir, "..", "x.avif")} {
		if _, err := rec.URLFor(outside); err == nil {
			t.Errorf("URLFor(%q) should fail outside the uploads dir", outside)
		}
	}
}

func TestRecorderPathFor(t *testing.T) {
	rec, _, dir := newTestRecorder(t)

	got, ok := rec.PathFor(testBaseURL + "/2024/05/photo.jpg?ver=3")
	if !ok || got != filepath.Join(dir, "2024", "05", "photo.jpg") {
		t.Errorf("PathFor() = (%q, %v)", got, ok)
	}
	if _, ok := rec.PathFor("https://cdn.other.test/photo.jpg"); ok {
		t.Error("PathFor() should reject foreign hosts")
	}
	if _, ok := rec.PathFor(testBaseURL + "/../../etc/passwd"); ok {
		t.Error("PathFor() should reject traversal")
	}
}

func TestRecorderRecord(t *testing.T) {
	rec, store, dir := newTestRecorder(t)
	src := filepath.Join(dir, "2024", "photo.jpg")

	out := &Outcome{
		AVIF: stagedCandidate(t, src, FormatAVIF, 6000, DefaultAVIFLadder[0]),
		WebP: stagedCandidate(t, src, FormatWebP, 8100, DefaultWebPAttempt),
	}
	baseline := Baseline{Bytes: 10000, Origin: OriginOriginal}

	records, err := rec.Record(context.Background(), 42, out, baseline)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Record() returned %d records, want 2", len(records))
	}

	avif := records[0]
	if avif.Format != FormatAVIF || avif.Quality != "50" || avif.Resize != "3000" {
		t.Errorf("avif record = %+v", avif)
	}
	if avif.SavingsPercent == nil || *avif.SavingsPercent != 40 {
		t.Errorf("avif savings = %v, want 40", avif.SavingsPercent)
	}
	if avif.URL != testBaseURL+"/2024/photo.avif" {
		t.Errorf("avif URL = %q", avif.URL)
	}
	if webp := records[1]; webp.SavingsPercent == nil || *webp.SavingsPercent != 19 {
		t.Errorf("webp savings = %v, want 19", webp.SavingsPercent)
	}

	for _, r := range records {
		if _, err := os.Stat(r.Path); err != nil {
			t.Errorf("final file %s missing: %v", r.Path, err)
		}
	}
	if left := tempFiles(t, dir); len(left) != 0 {
		t.Errorf("temp files left: %v", left)
	}

	stored, _ := store.GetVariants(context.Background(), 42)
	if len(stored) != 2 {
		t.Errorf("store has %d records, want 2", len(stored))
	}
}

func TestRecorderDropsVariantOfSkippedFormat(t *testing.T) {
	rec, store, dir := newTestRecorder(t)
	ctx := context.Background()
	src := filepath.Join(dir, "photo.jpg")

	first := &Outcome{
		AVIF: stagedCandidate(t, src, FormatAVIF, 6000, DefaultAVIFLadder[0]),
		WebP: stagedCandidate(t, src, FormatWebP, 8000, DefaultWebPAttempt),
	}
	if _, err := rec.Record(ctx, 5, first, Baseline{Origin: OriginSkipped}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	avifPath := filepath.Join(dir, "photo.avif")

	// A later compare run rejects every AVIF attempt and keeps only WebP.
	second := &Outcome{
		WebP:    stagedCandidate(t, src, FormatWebP, 7000, DefaultWebPAttempt),
		Skipped: map[Format]string{FormatAVIF: KindExhausted.Reason()},
	}
	records, err := rec.Record(ctx, 5, second, Baseline{Bytes: 10000, Origin: OriginOriginal})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(records) != 1 || records[0].Format != FormatWebP {
		t.Fatalf("Record() = %+v, want only webp", records)
	}

	stored, _ := store.GetVariants(ctx, 5)
	if len(stored) != 1 || stored[0].Format != FormatWebP || stored[0].Bytes != 7000 {
		t.Errorf("stored = %+v, want the new webp only", stored)
	}
	if _, err := os.Stat(avifPath); !os.IsNotExist(err) {
		t.Errorf("earlier avif still on disk: %v", err)
	}
}

func TestRecorderKeepsVariantsWhenNothingRecorded(t *testing.T) {
	rec, store, dir := newTestRecorder(t)
	ctx := context.Background()
	src := filepath.Join(dir, "photo.jpg")

	first := &Outcome{AVIF: stagedCandidate(t, src, FormatAVIF, 6000, DefaultAVIFLadder[0])}
	if _, err := rec.Record(ctx, 6, first, Baseline{Origin: OriginSkipped}); err != nil {
		t.Fatal(err)
	}

	empty := &Outcome{Skipped: map[Format]string{FormatAVIF: "x", FormatWebP: "y"}}
	if records, _ := rec.Record(ctx, 6, empty, Baseline{Origin: OriginSkipped}); len(records) != 0 {
		t.Fatalf("Record() = %+v", records)
	}
	if stored, _ := store.GetVariants(ctx, 6); len(stored) != 1 {
		t.Errorf("a failed run must not touch records, got %+v", stored)
	}
}

func TestRecorderSkipModeHasNoSavings(t *testing.T) {
	rec, _, dir := newTestRecorder(t)
	src := filepath.Join(dir, "shot.png")
	out := &Outcome{AVIF: stagedCandidate(t, src, FormatAVIF, 500, LosslessAttempt)}

	records, err := rec.Record(context.Background(), 1, out, Baseline{Origin: OriginSkipped})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if records[0].SavingsPercent != nil {
		t.Errorf("SavingsPercent = %d, want nil in skip mode", *records[0].SavingsPercent)
	}
	if records[0].Quality != "lossless" || records[0].Resize != "native" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestRecorderStoreFailureRemovesFile(t *testing.T) {
	rec, store, dir := newTestRecorder(t)
	store.upsertErr = errBoom
	src := filepath.Join(dir, "photo.jpg")
	out := &Outcome{WebP: stagedCandidate(t, src, FormatWebP, 100, DefaultWebPAttempt)}

	records, err := rec.Record(context.Background(), 1, out, Baseline{Origin: OriginSkipped})
	if err == nil || len(records) != 0 {
		t.Fatalf("Record() = %v, %v; want failure", records, err)
	}
	final, _ := VariantPath(src, FormatWebP)
	for _, p := range []string{final, TempPath(final)} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after a failed record", p)
		}
	}
}

func TestRecorderPurge(t *testing.T) {
	rec, store, dir := newTestRecorder(t)
	ctx := context.Background()

	scaled := filepath.Join(dir, "photo-scaled.jpg")
	original := filepath.Join(dir, "photo.jpg")
	files := []string{
		filepath.Join(dir, "photo.avif"),
		filepath.Join(dir, "photo-scaled.webp"),
		filepath.Join(dir, "photo.webp.temp"),
	}
	for _, f := range files {
		writeSized(t, f, 10)
	}
	writeSized(t, original, 10)
	writeSized(t, scaled, 10)

	for _, f := range []Format{FormatAVIF, FormatWebP} {
		p, _ := VariantPath(original, f)
		if err := store.UpsertVariant(ctx, VariantRecord{AssetID: 9, Format: f, Path: p}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := rec.Purge(ctx, 9, scaled)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != len(files) {
		t.Errorf("Purge() removed %d files, want %d", removed, len(files))
	}
	for _, f := range files {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("%s still exists", f)
		}
	}
	for _, f := range []string{original, scaled} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("source %s must survive a purge: %v", f, err)
		}
	}
	if recs, _ := store.GetVariants(ctx, 9); len(recs) != 0 {
		t.Errorf("records left: %v", recs)
	}

	removed, err = rec.Purge(ctx, 9, scaled)
	if err != nil || removed != 0 {
		t.Errorf("second Purge() = (%d, %v), want silent no-op", removed, err)
	}
}

func TestSavingsPercent(t *testing.T) {
	tests := []struct {
		bytes, base int64
		want        int
	}{
		{500, 1000, 50},
		{1000, 1000, 0},
		{1500, 1000, -50},
		{8005, 10000, 20},
		{8006, 10000, 20},
	}
	for _, tt := range tests {
		got := savingsPercent(tt.bytes, Baseline{Bytes: tt.base, Origin: OriginOriginal})
		if got == nil || *got != tt.want {
			t.Errorf("savingsPercent(%d, %d) = %v, want %d", tt.bytes, tt.base, got, tt.want)
		}
	}
}
