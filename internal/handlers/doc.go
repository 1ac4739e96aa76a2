// Package handlers provides the HTTP API for variant generation.
//
// It includes handlers for:
//   - Registering uploads, which schedules their delayed conversion
//   - Converting, inspecting and purging a single asset's variants
//   - Scanning for assets without variants and generating them in batches
//   - Reading and saving the operator settings
//   - Guessing variant URLs and reporting encoder capabilities
//   - Health checks, version and Prometheus metrics
//
// Engine failures are answered with an ErrorResponse whose kind names the
// failure class and whose error is a sentence fit for display.
package handlers
