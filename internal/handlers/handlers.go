package handlers

import (
	"context"
	"time"

	"avif-everywhere/internal/batch"
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/variant"
)

// Engine converts and purges single assets. *variant.Service implements it.
type Engine interface {
	Convert(ctx context.Context, assetID int64, mode variant.Mode) (*variant.Report, error)
	Variants(ctx context.Context, assetID int64) ([]variant.VariantRecord, error)
	Purge(ctx context.Context, assetID int64) (int, error)
	Capabilities() variant.Capabilities
}

// Store persists assets and settings. *database.Database implements it.
type Store interface {
	CreateAsset(ctx context.Context, path, mimeType string) (*database.Asset, error)
	DeleteAsset(ctx context.Context, id int64) error
	GetSettings(ctx context.Context) (variant.Settings, error)
	SaveSettings(ctx context.Context, s variant.Settings) error
	Ping(ctx context.Context) error
}

// Batch runs retroactive generation. *batch.Runner implements it.
type Batch interface {
	Scan(ctx context.Context) ([]database.MissingAsset, error)
	Run(ctx context.Context, ids []int64) (*batch.Summary, error)
	Running() bool
}

// Uploads defers conversions of fresh uploads. *scheduler.Scheduler
// implements it.
type Uploads interface {
	ScheduleUpload(ctx context.Context, assetID int64, mime string) bool
	Cancel(assetID int64) bool
	Pending() int
}

// URLGuesser maps image URLs to variant URLs. *variant.Resolver implements it.
type URLGuesser interface {
	GuessVariantURL(ctx context.Context, imageURL string, format variant.Format) (string, bool)
}

// Options carries host facts reported by the diagnostics endpoints.
type Options struct {
	UploadsDir  string
	VipsVersion string
	// UploadsWritable is re-checked on each capabilities request when nil.
	UploadsWritable func() bool
}

// Handlers serves the HTTP API.
type Handlers struct {
	engine   Engine
	store    Store
	batch    Batch
	uploads  Uploads
	resolver URLGuesser
	opts     Options
	started  time.Time
}

// New creates Handlers.
func New(engine Engine, store Store, runner Batch, uploads Uploads, resolver URLGuesser, opts Options) *Handlers {
	return &Handlers{
		engine:   engine,
		store:    store,
		batch:    runner,
		uploads:  uploads,
		resolver: resolver,
		opts:     opts,
		started:  time.Now(),
	}
}
