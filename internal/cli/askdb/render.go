package askdb

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/query"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	sqlStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// renderExchange prints the extracted statement as a sql block followed by
// the result table, the empty-result notice, or the error message.
func renderExchange(w io.Writer, exchange pipeline.Exchange) {
	if exchange.Statement != "" {
		_, _ = fmt.Fprintln(w, sqlStyle.Render("```sql\n"+exchange.Statement+"\n```"))
	}
	renderResult(w, exchange.Result)
}

func renderResult(w io.Writer, result query.Result) {
	if result.Failed() {
		_, _ = fmt.Fprintln(w, errorStyle.Render("Error: "+result.Message()))
		return
	}
	if result.RowCount() == 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No results found."))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.Columns()))
	for i, col := range result.Columns() {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range result.Rows() {
		tableRow := make(table.Row, len(row))
		for i, val := range row {
			tableRow[i] = formatValue(val)
		}
		t.AppendRow(tableRow)
	}
	t.Render()

	noun := "rows"
	if result.RowCount() == 1 {
		noun = "row"
	}
	_, _ = fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("(%d %s, %s)", result.RowCount(), noun, result.Duration.Round(time.Millisecond))))
}

func renderHistory(w io.Writer, turns []conversation.Turn) {
	if len(turns) == 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No conversation yet."))
		return
	}
	for _, turn := range turns {
		label := titleStyle.Render("Assistant:")
		if turn.Role == conversation.RoleUser {
			label = userStyle.Render("User:")
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", label, turn.Text)
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.RFC3339)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

type exchangeJSON struct {
	Question    string   `json:"question"`
	SQL         string   `json:"sql"`
	RawResponse string   `json:"raw_response"`
	Status      string   `json:"status"`
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
	Error       string   `json:"error,omitempty"`
}

func writeExchangeJSON(w io.Writer, exchange pipeline.Exchange) error {
	payload := exchangeJSON{
		Question:    exchange.Question,
		SQL:         exchange.Statement,
		RawResponse: exchange.RawResponse,
		Status:      "success",
		Columns:     exchange.Result.Columns(),
		Rows:        exchange.Result.Rows(),
	}
	if exchange.Result.Failed() {
		payload.Status = "failure"
		payload.Error = exchange.Result.Message()
	}
	if payload.Columns == nil {
		payload.Columns = []string{}
	}
	if payload.Rows == nil {
		payload.Rows = [][]any{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func normalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "table":
		return "table", nil
	case "json":
		return "json", nil
	default:
		return "", fmt.Errorf("unknown format %q (want table or json)", format)
	}
}
