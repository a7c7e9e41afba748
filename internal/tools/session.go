package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nihalnihalani/EnrichedMMCP/internal/market"
)

// Session defaults.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxRounds   = 5
	DefaultIdleTimeout = 30 * time.Minute
	DefaultMaxSessions = 100
)

const systemPrompt = "You are a market data assistant. Answer questions about stored daily prices " +
	"of stocks, crypto, commodities and indices. Use the tools to fetch data; never invent prices. " +
	"Percentages are already rounded to two decimals."

var (
	// ErrMissingAPIKey is returned when a session is opened without credentials.
	ErrMissingAPIKey = errors.New("llm api key is required")
	// ErrMaxRounds is returned when the model keeps requesting tools past the round limit.
	ErrMaxRounds = errors.New("tool-calling round limit reached")
	// ErrSessionNotFound is returned for an unknown or closed session id.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionConfig holds the model settings shared by new sessions.
type SessionConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxRounds  int
	HTTPClient *http.Client

	// Store limits. Zero values use the defaults.
	IdleTimeout time.Duration
	MaxSessions int
}

// Session is one user's conversation with the assistant. It owns its
// credentials and history; nothing is shared between sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	client     openai.Client
	model      string
	maxRounds  int
	tools      []openai.ChatCompletionToolParam
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion

	// guarded by the owning store's mu
	lastUsed time.Time
}

// NewSession creates a session. cfg.APIKey must be set.
func NewSession(id string, cfg SessionConfig, dispatcher *Dispatcher, logger *slog.Logger) (*Session, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Session{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		maxRounds:  cfg.MaxRounds,
		tools:      Definitions(market.Default()),
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "assistant_session"), slog.String("session_id", id)),
		history:    []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)},
	}, nil
}

// Ask sends question to the model and runs the requested tools until the
// model answers in text. Questions of one session are serialized.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, openai.UserMessage(question))

	for round := 1; round <= s.maxRounds; round++ {
		completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.model),
			Messages: messages,
			Tools:    s.tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("chat completion returned no choices")
		}

		msg := completion.Choices[0].Message
		messages = append(messages, msg.ToParam())

		if len(msg.ToolCalls) == 0 {
			s.history = messages
			s.logger.InfoContext(ctx, "question answered", slog.Int("rounds", round))
			return msg.Content, nil
		}

		for _, call := range msg.ToolCalls {
			content, err := s.runTool(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return "", err
			}
			messages = append(messages, openai.ToolMessage(content, call.ID))
		}
	}

	return "", fmt.Errorf("%w (%d)", ErrMaxRounds, s.maxRounds)
}

// runTool reports tool failures back to the model as JSON. Only
// cancellation aborts the loop.
func (s *Session) runTool(ctx context.Context, name, arguments string) (string, error) {
	out, err := s.dispatcher.Call(ctx, name, json.RawMessage(arguments))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload), nil
	}
	return string(out), nil
}

// Turns returns the number of messages held in the session history,
// including the system prompt.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// SessionStore keeps open sessions by id. Sessions idle longer than the
// idle timeout are dropped, and opening past the cap evicts the least
// recently used one.
type SessionStore struct {
	cfg        SessionConfig
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store. cfg supplies defaults for every
// session it opens.
func NewSessionStore(cfg SessionConfig, dispatcher *Dispatcher, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Open creates a session. A non-empty apiKey overrides the configured key.
func (st *SessionStore) Open(apiKey string) (*Session, error) {
	cfg := st.cfg
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	session, err := NewSession(uuid.NewString(), cfg, st.dispatcher, st.logger)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	now := st.now()
	st.expireLocked(now)
	for len(st.sessions) >= st.cfg.MaxSessions {
		st.evictOldestLocked()
	}
	session.lastUsed = now
	st.sessions[session.ID] = session
	open := len(st.sessions)
	st.mu.Unlock()

	st.logger.Info("assistant session opened",
		slog.String("session_id", session.ID),
		slog.Int("open_sessions", open))
	return session, nil
}

// Get returns an open session and marks it used.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	session, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := st.now()
	if st.idle(session, now) {
		delete(st.sessions, id)
		st.logger.Info("assistant session expired", slog.String("session_id", id))
		return nil, ErrSessionNotFound
	}
	session.lastUsed = now
	return session, nil
}

func (st *SessionStore) idle(s *Session, now time.Time) bool {
	return now.Sub(s.lastUsed) >= st.cfg.IdleTimeout
}

func (st *SessionStore) expireLocked(now time.Time) {
	for id, s := range st.sessions {
		if st.idle(s, now) {
			delete(st.sessions, id)
			st.logger.Info("assistant session expired", slog.String("session_id", id))
		}
	}
}

func (st *SessionStore) evictOldestLocked() {
	var oldest *Session
	for _, s := range st.sessions {
		if oldest == nil || s.lastUsed.Before(oldest.lastUsed) {
			oldest = s
		}
	}
	if oldest == nil {
		return
	}
	delete(st.sessions, oldest.ID)
	st.logger.Warn("assistant session evicted, store full",
		slog.String("session_id", oldest.ID),
		slog.Int("max_sessions", st.cfg.MaxSessions))
}

// Close discards a session and its history.
func (st *SessionStore) Close(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	st.logger.Info("assistant session closed", slog.String("session_id", id))
	return nil
}

// Len returns the number of open sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
