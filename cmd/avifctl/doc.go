// Command avifctl runs the conversion engine against the server's database
// without going through HTTP.
//
// It reads the same environment variables as the server (UPLOADS_DIR,
// DATABASE_DIR, BASE_URL, AVIFENC_PATH and so on).
//
// Usage:
//
//	avifctl probe                     Show which encoders are usable
//	avifctl scan                      List assets missing a variant
//	avifctl generate [id...]          Generate variants in chunks
//	avifctl convert <id>              Convert one asset
//	avifctl purge <id>                Delete an asset's variants
//
// Output is a table when stdout is a terminal and JSON otherwise. --json
// forces JSON.
//
// Do not run generate while the server is running a batch of its own. Both
// processes would convert the same assets.
package main
