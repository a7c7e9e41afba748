// Package config loads the service configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default values (Default)
//	2. A YAML file: $MARKET_CONFIG_FILE, config.yaml or configs/config.yaml
//	3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// Every variable is namespaced with MARKET_ followed by the section and the
// field:
//
//	MARKET_SERVER_PORT=8080
//	MARKET_DATABASE_DRIVER=postgres
//	MARKET_DATABASE_DSN=postgres://market@localhost/market?sslmode=disable
//	MARKET_CACHE_BACKEND=redis
//	MARKET_CACHE_REDIS_ADDR=localhost:6379
//	MARKET_ANALYSIS_DEFAULT_DAYS=30
//	MARKET_INGEST_SOURCE=data/stock_data.xlsx
//	MARKET_INGEST_SCHEDULE=@daily
//	MARKET_LLM_API_KEY=sk-...
//
// Lists such as MARKET_SECURITY_ALLOWED_ORIGINS are comma separated and
// durations use time.ParseDuration syntax.
//
// # Validation
//
// Load rejects out-of-range ports, unknown database drivers and cache
// backends, and non-positive analysis windows. Logging output falls back to
// console when unrecognised.
package config
