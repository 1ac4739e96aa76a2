package startup

import (
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/variant"
)

// Engine is the wired conversion stack shared by the server and avifctl.
type Engine struct {
	Service     *variant.Service
	Resolver    *variant.Resolver
	Caps        variant.Capabilities
	VipsVersion string
}

// BuildEngine initializes libvips, probes the encoders and wires the
// conversion stages to db. A libvips failure is logged, conversions then fall
// back to avifenc alone.
func BuildEngine(config *Config, db *database.Database) *Engine {
	if err := variant.InitVips(); err != nil {
		logging.Warn("libvips unavailable: %v", err)
	}

	cli := variant.NewCLIEncoder(config.AVIFEncPath, config.AVIFEncTimeout)
	lib := variant.NewVipsEncoder()
	caps := variant.ProbeCapabilities(cli, lib)

	recorder := variant.NewRecorder(db, config.UploadsDir, config.BaseURL)
	chain := variant.NewChain(caps, cli, lib, config.AVIFMinSavings)
	service := variant.NewService(db, db, variant.NewLocator(), chain, recorder)

	engine := &Engine{
		Service:     service,
		Resolver:    variant.NewResolver(recorder),
		Caps:        caps,
		VipsVersion: variant.VipsVersion(),
	}
	LogEncoderInit(caps, engine.VipsVersion)
	return engine
}
