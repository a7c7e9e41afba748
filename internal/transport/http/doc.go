// Package http implements the REST handlers of the market service. Handlers
// stay thin: they parse and validate the request, call a service and render
// the result with chi/render.
//
// # Routes
//
//	/api/latest-prices, /api/market-overview, /api/instruments
//	/api/stock-datas, /api/stock-datas/{id}
//	/api/historical-analysis, /api/compare
//	/tools, /tools/call, /tools/sessions
//	/api/health, /api/health/ready, /api/health/live, /api/version
//	/metrics, /
//
// # Errors
//
// Every failure is written by errors.ErrorHandler as RFC 7807 problem
// details. Domain errors from the analysis package pass through unchanged;
// the handler chooses the status:
//
//	{
//	    "type": "/errors/market/unknown-symbol",
//	    "title": "Unknown Symbol",
//	    "status": 400,
//	    "detail": "XYZ: unknown symbol (unknown_symbol)",
//	    "instance": "/api/historical-analysis",
//	    "error_code": "UNKNOWN_SYMBOL",
//	    "trace_id": "..."
//	}
//
// Percent fields of analyses are rounded to two decimals here, at the
// presentation boundary, never in the engine.
package http
