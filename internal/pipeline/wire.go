package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

// FromConfig assembles a session from loaded configuration. The object store
// is only contacted when the transcript archive is enabled.
func FromConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Session, error) {
	open := database.Opener(database.FromConfig(cfg.Database))

	translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init translator: %w", err)
	}

	deps := Deps{
		Schema:          schema.NewIntrospector(open, cfg.Database.Schema),
		Translator:      translator,
		Extractor:       nl2sql.Extractor{Strict: cfg.Pipeline.ExtractStrict},
		Runner:          query.NewExecutor(open, cfg.Pipeline.QueryTimeout),
		Logger:          logger,
		HistoryMaxTurns: cfg.Pipeline.HistoryMaxTurns,
	}
	if cfg.Archive.Enabled {
		store, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
		deps.Archiver = archive.NewArchiver(store, cfg.Archive.Timeout)
	}

	return NewSession(ctx, deps)
}
