// Package pipeline drives one conversational session: each question is
// translated, reduced to a single statement, executed, and then recorded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
)

// ErrTranslation wraps every error returned by the translator, so callers can
// tell a model failure apart from a failure to record the turn.
var ErrTranslation = errors.New("translate question")

type SchemaSource interface {
	Describe(ctx context.Context) (schema.Schema, error)
}

type TranscriptArchiver interface {
	Save(ctx context.Context, sessionID string, startedAt time.Time, turns []conversation.Turn) (string, error)
}

type Deps struct {
	Schema     SchemaSource
	Translator nl2sql.Translator
	Extractor  nl2sql.Extractor
	Runner     query.Runner
	// Store defaults to an in-memory log.
	Store conversation.Store
	// Archiver is optional; Close is a no-op without one.
	Archiver TranscriptArchiver
	Logger   *slog.Logger
	// HistoryMaxTurns bounds the exchanges sent to the translator. 0 sends all.
	HistoryMaxTurns int
}

// Exchange is everything the presentation layer needs for one turn.
type Exchange struct {
	Question    string       `json:"question"`
	RawResponse string       `json:"raw_response"`
	Statement   string       `json:"sql"`
	Result      query.Result `json:"-"`
}

type Session struct {
	id         string
	startedAt  time.Time
	schema     schema.Schema
	schemaText string

	translator nl2sql.Translator
	extractor  nl2sql.Extractor
	runner     query.Runner
	store      conversation.Store
	archiver   TranscriptArchiver
	logger     *slog.Logger
	maxTurns   int

	mu sync.Mutex
}

// NewSession introspects the database once and renders the schema text used
// for every turn. An introspection failure is fatal to the session.
func NewSession(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Schema == nil {
		return nil, errors.New("schema source is required")
	}
	if deps.Translator == nil {
		return nil, errors.New("translator is required")
	}
	if deps.Runner == nil {
		return nil, errors.New("query runner is required")
	}
	if deps.HistoryMaxTurns < 0 {
		return nil, fmt.Errorf("history max turns must be >= 0")
	}
	store := deps.Store
	if store == nil {
		store = conversation.NewMemoryStore()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	described, err := deps.Schema.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe schema: %w", err)
	}

	s := &Session{
		id:         uuid.NewString(),
		startedAt:  time.Now().UTC(),
		schema:     described,
		schemaText: schema.Render(described),
		translator: deps.Translator,
		extractor:  deps.Extractor,
		runner:     deps.Runner,
		store:      store,
		archiver:   deps.Archiver,
		maxTurns:   deps.HistoryMaxTurns,
	}
	s.logger = logger.With(slog.String("session_id", s.id))
	s.logger.InfoContext(ctx, "session started", slog.Int("tables", len(described.Tables)))
	observability.SetConversationTurns(store.Len())
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

func (s *Session) Schema() schema.Schema {
	return s.schema
}

func (s *Session) SchemaText() string {
	return s.schemaText
}

func (s *Session) History() []conversation.Turn {
	return s.store.History()
}

// Ask runs one full turn. Turns are serialized; the question and the model's
// response are recorded only after execution finishes. A translation error
// wraps ErrTranslation and leaves the history untouched. Every other outcome,
// including a response with no statement, is reported through the Result.
func (s *Session) Ask(ctx context.Context, question string) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exchange := Exchange{Question: question}

	history := conversation.Window(s.store.History(), s.maxTurns)
	start := time.Now()
	raw, err := s.translator.Translate(ctx, nl2sql.Request{
		SchemaText: s.schemaText,
		History:    history,
		Question:   question,
	})
	translateElapsed := time.Since(start)
	observability.ObserveTranslation(err != nil, translateElapsed)
	if err != nil {
		s.logger.ErrorContext(ctx, "translation failed", observability.LogAttrs(ctx, slog.Any("error", err))...)
		return Exchange{}, fmt.Errorf("%w: %w", ErrTranslation, err)
	}
	exchange.RawResponse = raw

	stmt, err := s.extractor.Extract(raw)
	fenced := false
	switch {
	case errors.Is(err, nl2sql.ErrNoStatement):
		observability.ObserveExtraction(observability.ExtractionEmpty)
		exchange.Result = query.Failure(err.Error())
	case err != nil:
		return Exchange{}, fmt.Errorf("extract statement: %w", err)
	default:
		path := observability.ExtractionFallback
		if stmt.Fenced {
			path = observability.ExtractionFenced
		}
		observability.ObserveExtraction(path)
		fenced = stmt.Fenced
		exchange.Statement = stmt.SQL
		exchange.Result = s.runner.Execute(ctx, stmt.SQL)
		observability.ObserveExecution(exchange.Result.Failed(), exchange.Result.Duration)
	}

	attrs := []any{
		slog.String("sql", exchange.Statement),
		slog.Bool("fenced", fenced),
		slog.Duration("translate_duration", translateElapsed),
		slog.Duration("execute_duration", exchange.Result.Duration),
	}
	level := slog.LevelInfo
	if exchange.Result.Failed() {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("outcome", observability.OutcomeFailure), slog.String("error", exchange.Result.Message()))
	} else {
		attrs = append(attrs, slog.String("outcome", observability.OutcomeSuccess), slog.Int("rows", exchange.Result.RowCount()))
	}
	s.logger.Log(ctx, level, "turn_completed", observability.LogAttrs(ctx, attrs...)...)

	if err := s.record(question, raw); err != nil {
		return exchange, err
	}
	return exchange, nil
}

func (s *Session) record(question, response string) error {
	if err := s.store.Append(conversation.Turn{Role: conversation.RoleUser, Text: question}); err != nil {
		return fmt.Errorf("record question: %w", err)
	}
	if err := s.store.Append(conversation.Turn{Role: conversation.RoleAssistant, Text: response}); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	observability.SetConversationTurns(s.store.Len())
	return nil
}

// Close archives the transcript when an archiver is configured and returns
// the object key it was written to.
func (s *Session) Close(ctx context.Context) (string, error) {
	if s.archiver == nil {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.archiver.Save(ctx, s.id, s.startedAt, s.store.History())
	if err != nil {
		return "", err
	}
	if key != "" {
		s.logger.InfoContext(ctx, "transcript archived", slog.String("key", key), slog.Int("turns", s.store.Len()))
	}
	return key, nil
}
