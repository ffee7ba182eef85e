// Package askdb implements the interactive askdb command line: a chat REPL
// over a single conversation plus one-shot helpers.
package askdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/pipeline"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

// Conversation is the slice of *pipeline.Session the commands use.
type Conversation interface {
	Ask(ctx context.Context, question string) (pipeline.Exchange, error)
	History() []conversation.Turn
	SchemaText() string
	Close(ctx context.Context) (string, error)
}

// TranscriptLoader reads archived transcripts back from the object store.
type TranscriptLoader interface {
	Load(ctx context.Context, key string) ([]archive.Record, error)
}

type Options struct {
	Lookup config.LookupFunc
	// NewConversation defaults to pipeline.FromConfig.
	NewConversation func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Conversation, error)
	// NewLineReader defaults to a readline prompt on the terminal.
	NewLineReader func() (LineReader, error)
	// OpenDB defaults to database.Open with the configured connection.
	OpenDB func(ctx context.Context, cfg config.Config) (*sql.DB, error)
	// OpenTranscripts defaults to an archive reader over the configured object store.
	OpenTranscripts func(ctx context.Context, cfg config.Config) (TranscriptLoader, error)
}

type app struct {
	opts    Options
	verbose bool
	cfg     config.Config
	logger  *slog.Logger
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.NewConversation == nil {
		opts.NewConversation = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (Conversation, error) {
			return pipeline.FromConfig(ctx, cfg, logger)
		}
	}
	if opts.NewLineReader == nil {
		opts.NewLineReader = newReadline
	}
	if opts.OpenDB == nil {
		opts.OpenDB = func(ctx context.Context, cfg config.Config) (*sql.DB, error) {
			return database.Open(ctx, database.FromConfig(cfg.Database))
		}
	}
	if opts.OpenTranscripts == nil {
		opts.OpenTranscripts = func(ctx context.Context, cfg config.Config) (TranscriptLoader, error) {
			store, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
			if err != nil {
				return nil, err
			}
			return archive.NewArchiver(store, cfg.Archive.Timeout), nil
		}
	}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:   "askdb",
		Short: "Ask questions about your database in plain language",
		Long: `askdb translates questions into SQL with a language model, runs the
statement against the configured database and shows the result.

Connection and model settings come from ASKDB_* environment variables.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
		RunE:          a.runChat,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Write structured logs to stderr")

	rootCmd.AddCommand(a.newChatCommand())
	rootCmd.AddCommand(a.newAskCommand())
	rootCmd.AddCommand(a.newSchemaCommand())
	rootCmd.AddCommand(a.newSeedCommand())
	rootCmd.AddCommand(a.newTranscriptCommand())
	return rootCmd
}

// Execute runs the root command and reports errors on stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts Options) int {
	cmd := NewRootCmd(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load("askdb", a.opts.Lookup)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.verbose {
		a.logger = observability.NewLogger(cfg, stderr)
	} else {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return nil
}

func (a *app) openConversation(ctx context.Context) (Conversation, error) {
	conv, err := a.opts.NewConversation(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return conv, nil
}

// closeConversation archives the transcript when enabled and reports where.
func (a *app) closeConversation(ctx context.Context, conv Conversation, w io.Writer) {
	key, err := conv.Close(context.WithoutCancel(ctx))
	if err != nil {
		_, _ = fmt.Fprintln(w, errorStyle.Render("Archive failed: "+err.Error()))
		return
	}
	if key != "" {
		_, _ = fmt.Fprintln(w, dimStyle.Render("Transcript archived to "+key))
	}
}
