package http

import (
	"net/http"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
)

// MetricsHandler serves the Prometheus exposition when metrics are enabled.
type MetricsHandler struct {
	exposition   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler wraps the exposition handler. A nil exposition means
// metrics are disabled and the endpoint answers 503.
func NewMetricsHandler(exposition http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			apierrors.CodeUnavailable,
			"Metrics are disabled",
		))
		return
	}
	h.exposition.ServeHTTP(w, r)
}
