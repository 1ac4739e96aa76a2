// Package variant generates AVIF and WebP variants for uploaded JPEG and PNG
// images.
//
// A conversion runs in stages:
//
//   - Locator finds the full-resolution source, preferring the original over
//     a "-scaled" copy, and classifies it (MIME, dimensions, transparency).
//   - ResolveBaseline picks the byte size a candidate must beat.
//   - Chain tries lossless AVIF through avifenc for opaque PNGs, then the
//     lossy AVIF ladder through libvips, then one WebP attempt.
//   - Recorder renames accepted candidates into place and stores their
//     records.
//
// Candidates are written to "<final>.temp" and only renamed once accepted, so
// a final path never holds a half-written or rejected file.
//
// File existence lookups are memoised per session through an ExistenceCache
// carried in the context. Never share a cache between sessions.
package variant
