package askdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/seed"
	"github.com/askdb/askdb/internal/storage"
)

func (a *app) newAskCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the result",
		Example: `  askdb ask "How many orders did Alice place?"
  askdb ask --format json "List customers from India"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := normalizeFormat(format)
			if err != nil {
				return err
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is required")
			}

			ctx := cmd.Context()
			conv, err := a.openConversation(ctx)
			if err != nil {
				return err
			}
			defer a.closeConversation(ctx, conv, cmd.ErrOrStderr())

			exchange, err := conv.Ask(ctx, question)
			if err != nil {
				return err
			}
			if mode == "json" {
				return writeExchangeJSON(cmd.OutOrStdout(), exchange)
			}
			renderExchange(cmd.OutOrStdout(), exchange)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (a *app) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema description sent to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			open := database.Opener(database.FromConfig(a.cfg.Database))
			described, err := schema.NewIntrospector(open, a.cfg.Database.Schema).Describe(cmd.Context())
			if err != nil {
				return fmt.Errorf("describe schema: %w", err)
			}
			if len(described.Tables) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No tables found in schema "+a.cfg.Database.Schema+"."))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), schema.Render(described))
			return nil
		},
	}
}

func (a *app) newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Drop and recreate the sample customers and orders tables",
		Long: `Drops the customers and orders tables and recreates them with a small
sample data set. Existing data in those tables is lost. PostgreSQL only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Database.Driver != database.DriverPostgres {
				return fmt.Errorf("seed requires the %s driver, got %q", database.DriverPostgres, a.cfg.Database.Driver)
			}
			ctx := cmd.Context()
			db, err := a.opts.OpenDB(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			applied, err := seed.NewRunner().Reset(ctx, db)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "sample data loaded", slog.Int("scripts", applied))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("Sample data inserted successfully."))
			return nil
		},
	}
}

func (a *app) newTranscriptCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "transcript <key>",
		Short: "Print a conversation transcript archived by an earlier session",
		Long: `Reads an archived transcript from the configured object store. The key is
the one reported when the session closed.`,
		Example: `  askdb transcript sessions/date=2026-03-02/5f0c7a1e-8d2b-4c1a-9f3e-2b7d6c9a1e40.parquet
  askdb transcript --format json sessions/date=2026-03-02/5f0c7a1e-8d2b-4c1a-9f3e-2b7d6c9a1e40.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := normalizeFormat(format)
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			if key == "" {
				return errors.New("transcript key is required")
			}

			ctx := cmd.Context()
			loader, err := a.opts.OpenTranscripts(ctx, a.cfg)
			if err != nil {
				return fmt.Errorf("open object store: %w", err)
			}
			records, err := loader.Load(ctx, key)
			if errors.Is(err, storage.ErrObjectNotFound) {
				return fmt.Errorf("transcript %q not found", key)
			}
			if err != nil {
				return fmt.Errorf("load transcript: %w", err)
			}
			turns := archive.Turns(records)
			a.logger.InfoContext(ctx, "transcript loaded", slog.String("key", key), slog.Int("turns", len(turns)))

			if mode == "json" {
				return writeTurnsJSON(cmd.OutOrStdout(), turns)
			}
			renderHistory(cmd.OutOrStdout(), turns)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	return cmd
}

func writeTurnsJSON(w io.Writer, turns []conversation.Turn) error {
	if turns == nil {
		turns = []conversation.Turn{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(turns)
}
