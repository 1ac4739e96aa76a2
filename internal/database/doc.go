// Package database provides SQLite storage for avif-everywhere.
//
// It handles storage and retrieval of:
//   - Assets (uploaded JPEG and PNG source images)
//   - Variant records, one per asset and format
//   - Operator settings that override the environment defaults
//
// The database uses WAL mode so the HTTP server, the upload scheduler and
// batch runs can share it, and the schema is created on first open.
package database
