package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/nihalnihalani/EnrichedMMCP/internal/analysis"
	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeMethod      = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeUnknownSymbol  = "/errors/market/unknown-symbol"
	TypeInvalidWindow  = "/errors/market/invalid-window"
	TypeNoData         = "/errors/market/no-data"
	TypeNoValidSymbols = "/errors/market/no-valid-symbols"
	TypeRowNotFound    = "/errors/market/row-not-found"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem.WithExtension("trace_id", traceID)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	instance := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			instance,
		).WithExtension("error_code", CodeTimeout)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var cmpErr *analysis.ComparisonError
	if errors.As(err, &cmpErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeNoValidSymbols,
			"No Valid Symbols",
			"None of the requested symbols produced an analysis",
			instance,
		).WithExtension("error_code", CodeNoValidSymbols).
			WithExtension("failures", cmpErr.Failures)
	}

	var symErr *analysis.SymbolError
	hasSymbol := errors.As(err, &symErr)

	switch {
	case errors.Is(err, analysis.ErrUnknownSymbol):
		problem := NewProblemDetails(
			http.StatusBadRequest,
			TypeUnknownSymbol,
			"Unknown Symbol",
			err.Error(),
			instance,
		).WithExtension("error_code", CodeUnknownSymbol).
			WithExtension("accepted_symbols", market.Default().AcceptedSymbols())
		if hasSymbol {
			problem.WithExtension("symbol", symErr.Symbol)
		}
		return problem

	case errors.Is(err, analysis.ErrInvalidWindow):
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidWindow,
			"Invalid Analysis Window",
			err.Error(),
			instance,
		).WithExtension("error_code", CodeInvalidWindow)

	case errors.Is(err, analysis.ErrInvalidInput), errors.Is(err, analysis.ErrNoValidSymbols):
		status, code := http.StatusBadRequest, CodeValidation
		if errors.Is(err, analysis.ErrNoValidSymbols) {
			status, code = http.StatusUnprocessableEntity, CodeNoValidSymbols
		}
		return NewProblemDetails(
			status,
			TypeValidation,
			http.StatusText(status),
			err.Error(),
			instance,
		).WithExtension("error_code", code)

	case errors.Is(err, analysis.ErrNoDataAvailable):
		problem := NewProblemDetails(
			http.StatusNotFound,
			TypeNoData,
			"No Data Available",
			err.Error(),
			instance,
		).WithExtension("error_code", CodeNoData)
		if hasSymbol {
			problem.WithExtension("symbol", symErr.Symbol).
				WithExtension("reason", symErr.Reason)
		}
		return problem

	case errors.Is(err, storage.ErrRowNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			TypeRowNotFound,
			"Row Not Found",
			err.Error(),
			instance,
		).WithExtension("error_code", CodeNotFound)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, instance)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		instance,
	).WithExtension("error_code", CodeInternal)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidation, CodeInvalidRequest:
		problemType = TypeValidation
	case CodeNotFound, CodeUnknownTool:
		problemType = TypeNotFound
	case CodeRateLimit:
		problemType = TypeRateLimit
	case CodeUnavailable:
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

func appErrorToProblem(appErr *AppError, instance string) *ProblemDetails {
	status, problemType := http.StatusInternalServerError, TypeInternal
	switch appErr.Type {
	case ErrTypeValidation, ErrTypeParsing:
		status, problemType = http.StatusBadRequest, TypeValidation
	case ErrTypeNotFound:
		status, problemType = http.StatusNotFound, TypeNotFound
	case ErrTypeNetwork:
		status, problemType = http.StatusServiceUnavailable, TypeServiceDown
	}
	detail := appErr.Message
	if status >= http.StatusInternalServerError {
		detail = "An unexpected error occurred while processing your request"
	}
	return NewProblemDetails(status, problemType, http.StatusText(status), detail, instance).
		WithExtension("error_code", string(appErr.Type))
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", traceID).
		WithExtension("error_code", CodeInternal)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	problem.Write(w)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context())).
		WithExtension("error_code", CodeNotFound).
		Write(w)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context())).
		WithExtension("error_code", CodeMethodNotAllowed).
		Write(w)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
