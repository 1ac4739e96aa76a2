// Command avif-everywhere serves the variant generation API.
//
// It registers uploaded JPEG and PNG files, converts each one to AVIF and
// WebP a short while after upload, and offers retroactive batch generation
// for the existing library. Variants are written next to their sources in
// the uploads directory and recorded in a SQLite database.
//
// # Lifecycle
//
//  1. GOMEMLIMIT is set from MEMORY_LIMIT
//  2. Configuration is read from the environment (see package startup)
//  3. The database is opened and the env settings installed as defaults
//  4. libvips is started and the encoders are probed once
//  5. The metrics collector, memory monitor and upload scheduler start
//  6. The HTTP server listens on PORT
//
// On SIGINT or SIGTERM the server stops accepting requests, pending upload
// conversions are dropped, running ones get up to 30 seconds to finish, and
// libvips and the database are closed.
//
// # Build Requirements
//
// CGO is required for SQLite and libvips. avifenc is optional and only used
// for lossless AVIF from opaque PNGs.
//
// The companion CLI lives in cmd/avifctl.
package main
