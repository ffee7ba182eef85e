package askdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const prompt = "askdb> "

// LineReader is the prompt the chat loop reads questions from.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

func (a *app) newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runChat,
	}
}

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	conv, err := a.openConversation(ctx)
	if err != nil {
		return err
	}
	defer a.closeConversation(ctx, conv, errOut)

	rl, err := a.opts.NewLineReader()
	if err != nil {
		return fmt.Errorf("failed to initialize prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(out, titleStyle.Render("askdb")+" "+dimStyle.Render("(model: "+a.cfg.AI.Model+")"))
	_, _ = fmt.Fprintln(out, "Type a question, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(out, errOut, conv, line); quit {
				break
			}
			continue
		}

		askAndRender(ctx, out, errOut, conv, line)
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

func askAndRender(ctx context.Context, out, errOut io.Writer, conv Conversation, question string) {
	exchange, err := conv.Ask(ctx, question)
	if err != nil {
		_, _ = fmt.Fprintln(errOut, errorStyle.Render("Error: "+err.Error()))
		return
	}
	renderExchange(out, exchange)
}

// handleDotCommand reports whether the loop should stop.
func handleDotCommand(out, errOut io.Writer, conv Conversation, line string) bool {
	command := strings.ToLower(strings.Fields(line)[0])
	switch command {
	case ".quit", ".exit":
		return true
	case ".help":
		printChatHelp(out)
	case ".history":
		renderHistory(out, conv.History())
	case ".schema":
		_, _ = fmt.Fprintln(out, conv.SchemaText())
	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printChatHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Commands:
  .help      Show this help
  .history   Show the conversation so far
  .schema    Show the database schema sent to the model
  .quit      Exit (also .exit or Ctrl-D)

Anything else is sent as a question.`)
}

func newReadline() (LineReader, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile(),
		AutoComplete:    chatCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
}

func chatCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".history"),
		readline.PcItem(".schema"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile is empty when no home directory is known, which disables
// prompt history.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".askdb_history")
}
