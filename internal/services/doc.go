// Package services implements the business layer of the market API. It sits
// between the HTTP handlers and the store, keeping lookup, caching and
// analysis rules out of the transport.
//
// # Services
//
//	- MarketService: latest prices, overview statistics, row listing,
//	  historical analysis (cached) and multi-symbol comparison
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// Services return the sentinel errors of the analysis and storage packages,
// wrapped with context. Handlers map them to HTTP statuses with errors.Is.
//
// # Caching
//
// Historical analyses are cached under a key that embeds the store's most
// recent date. Cache failures are logged and never fail a request.
package services
