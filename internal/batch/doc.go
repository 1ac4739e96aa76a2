// Package batch generates variants for existing assets in bounded chunks.
//
// Scan lists assets that lack an AVIF or WebP record. Run converts a list of
// ids chunk by chunk with a short pause between chunks, running up to
// Config.Workers conversions at once inside a chunk. Every item runs in its
// own existence-cache session and in compare mode, so candidates must beat
// the platform's own resized copy.
package batch
