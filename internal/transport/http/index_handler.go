package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// Endpoint describes one route in the service index.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Endpoints lists the public routes.
var Endpoints = []Endpoint{
	{http.MethodGet, "/api/latest-prices", "Most recent prices of every instrument"},
	{http.MethodGet, "/api/market-overview", "Latest row with 30-day column statistics"},
	{http.MethodGet, "/api/instruments", "Tracked instruments and their aliases"},
	{http.MethodGet, "/api/stock-datas", "Stored rows; limit, offset, date_eq, date_gte, date_lte"},
	{http.MethodGet, "/api/stock-datas/{id}", "One stored row"},
	{http.MethodGet, "/api/historical-analysis", "Price change and volatility; symbol, days"},
	{http.MethodGet, "/api/compare", "Multi-symbol comparison; symbols, days"},
	{http.MethodGet, "/tools", "LLM tool definitions"},
	{http.MethodPost, "/tools/call", "Execute one tool call"},
	{http.MethodPost, "/tools/sessions", "Open an assistant session"},
	{http.MethodPost, "/tools/sessions/{id}/ask", "Ask the assistant a question"},
	{http.MethodDelete, "/tools/sessions/{id}", "Close an assistant session"},
	{http.MethodGet, "/api/health", "Health check"},
	{http.MethodGet, "/api/health/ready", "Readiness of the store and cache"},
	{http.MethodGet, "/api/health/live", "Liveness check"},
	{http.MethodGet, "/api/version", "Build information"},
	{http.MethodGet, "/metrics", "Prometheus metrics"},
}

// IndexHandler serves the service index at /.
type IndexHandler struct {
	name    string
	version string
}

// NewIndexHandler creates the index handler.
func NewIndexHandler(name, version string) *IndexHandler {
	return &IndexHandler{name: name, version: version}
}

// ServeHTTP handles GET /
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"name":      h.name,
		"version":   h.version,
		"endpoints": Endpoints,
	})
}
