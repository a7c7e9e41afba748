package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/openai/openai-go"

	apierrors "github.com/nihalnihalani/EnrichedMMCP/internal/errors"
	"github.com/nihalnihalani/EnrichedMMCP/internal/middleware"
	"github.com/nihalnihalani/EnrichedMMCP/internal/tools"
)

// LLMKeyHeader lets a client open an assistant session with its own key.
const LLMKeyHeader = "X-LLM-API-Key"

const maxToolBody = 64 << 10

// ToolCaller executes one tool call.
type ToolCaller interface {
	Call(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error)
}

// ToolsHandler serves the LLM tool schema, tool execution and assistant
// sessions.
type ToolsHandler struct {
	definitions  []openai.ChatCompletionToolParam
	caller       ToolCaller
	sessions     *tools.SessionStore
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewToolsHandler creates a tools handler. sessions may be nil, which
// disables the assistant endpoints.
func NewToolsHandler(definitions []openai.ChatCompletionToolParam, caller ToolCaller, sessions *tools.SessionStore, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ToolsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolsHandler{
		definitions:  definitions,
		caller:       caller,
		sessions:     sessions,
		validator:    middleware.NewValidator(),
		logger:       logger.With(slog.String("component", "tools_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the tool routes, mounted under /tools.
func (h *ToolsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JSONBody(maxToolBody, h.errorHandler))
		r.Post("/call", h.Call)
		r.Post("/sessions", h.OpenSession)
		r.Post("/sessions/{id}/ask", h.Ask)
	})
	r.Delete("/sessions/{id}", h.CloseSession)

	return r
}

// List handles GET /tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"tools": h.definitions})
}

// ToolCallRequest is the body of POST /tools/call.
type ToolCallRequest struct {
	Name      string          `json:"name" validate:"required,max=64"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResponse carries the tool output verbatim.
type ToolCallResponse struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// Call handles POST /tools/call
func (h *ToolsHandler) Call(w http.ResponseWriter, r *http.Request) {
	var req ToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.caller.Call(r.Context(), req.Name, req.Arguments)
	if err != nil {
		h.errorHandler.HandleError(w, r, toolError(err))
		return
	}
	render.JSON(w, r, ToolCallResponse{Name: req.Name, Result: result})
}

// OpenSession handles POST /tools/sessions
func (h *ToolsHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.errorHandler.HandleError(w, r, errAssistantDisabled)
		return
	}
	session, err := h.sessions.Open(r.Header.Get(LLMKeyHeader))
	if err != nil {
		h.errorHandler.HandleError(w, r, toolError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
	})
}

// AskRequest is the body of POST /tools/sessions/{id}/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

// Ask handles POST /tools/sessions/{id}/ask
func (h *ToolsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.errorHandler.HandleError(w, r, errAssistantDisabled)
		return
	}
	session, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, toolError(err))
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	answer, err := session.Ask(r.Context(), req.Question)
	if err != nil {
		h.errorHandler.HandleError(w, r, toolError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"session_id": session.ID,
		"answer":     answer,
	})
}

// CloseSession handles DELETE /tools/sessions/{id}
func (h *ToolsHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		h.errorHandler.HandleError(w, r, errAssistantDisabled)
		return
	}
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, toolError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errAssistantDisabled = apierrors.New(http.StatusServiceUnavailable, apierrors.CodeUnavailable, "Assistant sessions are disabled")

// toolError maps tool package errors onto API errors. Market errors pass
// through to the error handler unchanged.
func toolError(err error) error {
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return apierrors.NewWithDetails(http.StatusNotFound, apierrors.CodeUnknownTool, err.Error(), map[string]interface{}{
			"available_tools": toolNames(),
		})
	case errors.Is(err, tools.ErrSessionNotFound):
		return apierrors.NotFoundError("session")
	case errors.Is(err, tools.ErrMissingAPIKey):
		return apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidRequest,
			"An LLM API key is required; configure one or send "+LLMKeyHeader)
	case errors.Is(err, tools.ErrMaxRounds):
		return apierrors.New(http.StatusBadGateway, apierrors.CodeUnavailable, err.Error())
	}
	return err
}

func toolNames() []string {
	return []string{
		tools.ToolStockData,
		tools.ToolStockDataByID,
		tools.ToolLatestPrices,
		tools.ToolMarketOverview,
		tools.ToolHistoricalAnalysis,
		tools.ToolCompareSymbols,
	}
}
