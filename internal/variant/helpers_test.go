package variant

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// writeJPEG writes a noisy JPEG so the encoded file is comfortably larger
// than MinBaselineBytes.
func writeJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

// writePNG writes an NRGBA PNG. With transparent set, the top-left pixel is
// fully transparent.
func writePNG(t *testing.T, path string, width, height int, transparent bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), 128, 255})
		}
	}
	if transparent {
		img.Set(0, 0, color.NRGBA{0, 0, 0, 0})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

// writeSized writes n filler bytes.
func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	writeBytes(t, path, bytes.Repeat([]byte{'x'}, n))
}

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// tempFiles returns every *.temp file under dir.
func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == TempSuffix {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

type fakeCall struct {
	Format  Format
	Attempt AttemptSpec
	Dst     string
}

// fakeEncoder writes filler files of scripted sizes. A negative size makes
// that call fail with KindEncodeFailed.
type fakeEncoder struct {
	name    string
	formats map[Format]bool
	sizes   map[Format][]int64
	errs    map[Format]error

	mu    sync.Mutex
	calls []fakeCall
}

func newFakeEncoder(name string, formats ...Format) *fakeEncoder {
	f := &fakeEncoder{
		name:    name,
		formats: make(map[Format]bool),
		sizes:   make(map[Format][]int64),
		errs:    make(map[Format]error),
	}
	for _, format := range formats {
		f.formats[format] = true
	}
	return f
}

func (f *fakeEncoder) Name() string { return f.name }

func (f *fakeEncoder) Supports(format Format) bool { return f.formats[format] }

func (f *fakeEncoder) Encode(_ context.Context, src *SourceImage, format Format, attempt AttemptSpec, dst string) (*Candidate, error) {
	f.mu.Lock()
	n := 0
	for _, c := range f.calls {
		if c.Format == format {
			n++
		}
	}
	f.calls = append(f.calls, fakeCall{Format: format, Attempt: attempt, Dst: dst})
	f.mu.Unlock()

	if err := f.errs[format]; err != nil {
		return nil, err
	}
	sizes := f.sizes[format]
	if len(sizes) == 0 {
		return nil, errorf(KindEncodeFailed, "fake", src.Path, "no size scripted for %s", format)
	}
	size := sizes[min(n, len(sizes)-1)]
	if size < 0 {
		return nil, errorf(KindEncodeFailed, "fake", src.Path, "scripted failure")
	}
	if err := os.WriteFile(dst, bytes.Repeat([]byte{'v'}, int(size)), 0o644); err != nil {
		return nil, err
	}
	return &Candidate{
		Format:   format,
		Bytes:    size,
		TempPath: dst,
		Attempt:  attempt,
		Encoder:  f.name,
		Width:    src.Width,
		Height:   src.Height,
	}, nil
}

func (f *fakeEncoder) callCount(format Format) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Format == format {
			n++
		}
	}
	return n
}

// memStore is an in-memory VariantStore.
type memStore struct {
	mu        sync.Mutex
	records   map[int64]map[Format]VariantRecord
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]map[Format]VariantRecord)}
}

func (m *memStore) UpsertVariant(_ context.Context, rec VariantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.records[rec.AssetID] == nil {
		m.records[rec.AssetID] = make(map[Format]VariantRecord)
	}
	m.records[rec.AssetID][rec.Format] = rec
	return nil
}

func (m *memStore) GetVariants(_ context.Context, assetID int64) ([]VariantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []VariantRecord
	for _, rec := range m.records[assetID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Format < out[j].Format })
	return out, nil
}

func (m *memStore) DeleteVariants(_ context.Context, assetID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, assetID)
	return nil
}

func (m *memStore) DeleteVariant(_ context.Context, assetID int64, format Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[assetID], format)
	return nil
}

type fakeAssets map[int64]string

func (f fakeAssets) GetAssetPath(_ context.Context, id int64) (string, error) {
	p, ok := f[id]
	if !ok {
		return "", ErrAssetNotFound
	}
	return p, nil
}

type fakeSettings struct {
	settings Settings
	err      error
}

func (f *fakeSettings) GetSettings(context.Context) (Settings, error) {
	return f.settings, f.err
}

var errBoom = errors.New("boom")
