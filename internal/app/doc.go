// Package app wires the market history service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, config.yaml and the environment
//  2. Initialize logging and OpenTelemetry
//  3. Open the row store and the analysis cache
//  4. Build the market, health, ingest and assistant services
//  5. Set up HTTP handlers and middleware
//  6. Serve HTTP and run the ingest scheduler until the context ends
//
// # Middleware Order
//
// RequestID, RealIP, OTel, StructuredLogger, RecoveryMiddleware,
// SecurityHeaders, CORS, RateLimiter, then a per-group Timeout.
//
// # Shutdown
//
// When the context passed to Run is cancelled the server drains in-flight
// requests, the scheduler waits for a running load, and the cache, store and
// telemetry providers are closed in that order.
package app
