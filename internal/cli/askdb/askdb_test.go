package askdb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/chzyer/readline"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/seed"
	"github.com/askdb/askdb/internal/storage"
)

const aliceSQL = "SELECT COUNT(*) AS count FROM orders o JOIN customers c ON o.customer_id=c.id WHERE c.name='Alice';"

func TestChatAnswersQuestionsAndHandlesDotCommands(t *testing.T) {
	conv := newFakeConversation()
	conv.answers["How many orders did Alice place?"] = pipeline.Exchange{
		Question:    "How many orders did Alice place?",
		RawResponse: "```sql\n" + aliceSQL + "\n```",
		Statement:   aliceSQL,
		Result:      query.Success([]string{"count"}, [][]any{{int64(2)}}),
	}
	conv.archiveKey = "sessions/date=2026-10-15/abc.parquet"
	reader := &scriptedReader{lines: []string{
		".help",
		"",
		"How many orders did Alice place?",
		".history",
		".schema",
		".bogus",
		".quit",
		"never asked",
	}}

	stdout, stderr, code := runCLI(t, nil, Options{
		NewConversation: conv.factory(),
		NewLineReader:   reader.factory(),
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr)
	}
	if !containsAll(stdout, ".history", "```sql", aliceSQL, "count", "(1 row", "User:", "How many orders did Alice place?", "customers: id (integer)") {
		t.Fatalf("stdout missing expected output:\n%s", stdout)
	}
	if !strings.Contains(stderr, "Unknown command: .bogus") {
		t.Fatalf("stderr = %q", stderr)
	}
	if !strings.Contains(stderr, "Transcript archived to sessions/date=2026-10-15/abc.parquet") {
		t.Fatalf("stderr = %q", stderr)
	}
	if len(conv.asked) != 1 {
		t.Fatalf("asked = %v, want exactly one question", conv.asked)
	}
	if !reader.closed || !conv.closed {
		t.Fatalf("closed reader=%v conversation=%v", reader.closed, conv.closed)
	}
}

func TestChatContinuesAfterErrorsAndInterrupts(t *testing.T) {
	conv := newFakeConversation()
	conv.askErr = errors.New("translate question: model unavailable")
	reader := &scriptedReader{
		lines:     []string{"first question", "second question"},
		interrupt: true,
	}

	stdout, stderr, code := runCLI(t, []string{"chat"}, Options{
		NewConversation: conv.factory(),
		NewLineReader:   reader.factory(),
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr)
	}
	if len(conv.asked) != 2 {
		t.Fatalf("asked = %v", conv.asked)
	}
	if strings.Count(stderr, "model unavailable") != 2 {
		t.Fatalf("stderr = %q", stderr)
	}
	if strings.Contains(stdout, "```sql") {
		t.Fatalf("stdout rendered a statement after a failed turn:\n%s", stdout)
	}
}

func TestChatShowsEmptyHistory(t *testing.T) {
	conv := newFakeConversation()
	reader := &scriptedReader{lines: []string{".history"}}

	stdout, _, code := runCLI(t, nil, Options{
		NewConversation: conv.factory(),
		NewLineReader:   reader.factory(),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "No conversation yet.") {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestAskCommandRendersOutcomes(t *testing.T) {
	conv := newFakeConversation()
	conv.answers["customers from India"] = pipeline.Exchange{
		Question:  "customers from India",
		Statement: "SELECT name, country FROM customers WHERE country = 'India';",
		Result:    query.Success([]string{"name", "country"}, [][]any{{"Alice", "India"}, {nil, "India"}}),
	}
	conv.answers["customers from Mars"] = pipeline.Exchange{
		Question:  "customers from Mars",
		Statement: "SELECT name FROM customers WHERE country = 'Mars';",
		Result:    query.Success([]string{"name"}, [][]any{}),
	}
	conv.answers["typo"] = pipeline.Exchange{
		Question:  "typo",
		Statement: "SELEKT * FROM orders;",
		Result:    query.Failure(`syntax error at or near "SELEKT"`),
	}
	opts := Options{NewConversation: conv.factory()}

	stdout, _, code := runCLI(t, []string{"ask", "customers", "from", "India"}, opts)
	if code != 0 || !containsAll(stdout, "NAME", "Alice", "NULL", "(2 rows") {
		t.Fatalf("table output code=%d:\n%s", code, stdout)
	}

	stdout, _, code = runCLI(t, []string{"ask", "customers from Mars"}, opts)
	if code != 0 || !strings.Contains(stdout, "No results found.") {
		t.Fatalf("empty output code=%d:\n%s", code, stdout)
	}

	stdout, _, code = runCLI(t, []string{"ask", "typo"}, opts)
	if code != 0 || !containsAll(stdout, "SELEKT * FROM orders;", `Error: syntax error at or near "SELEKT"`) {
		t.Fatalf("failure output code=%d:\n%s", code, stdout)
	}
}

func TestAskCommandWritesJSON(t *testing.T) {
	conv := newFakeConversation()
	conv.answers["typo"] = pipeline.Exchange{
		Question:    "typo",
		RawResponse: "SELEKT * FROM orders;",
		Statement:   "SELEKT * FROM orders;",
		Result:      query.Failure("bad syntax"),
	}

	stdout, _, code := runCLI(t, []string{"ask", "--format", "json", "typo"}, Options{NewConversation: conv.factory()})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var payload exchangeJSON
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("decode json: %v\n%s", err, stdout)
	}
	if payload.Status != "failure" || payload.Error != "bad syntax" || payload.SQL != "SELEKT * FROM orders;" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Columns == nil || payload.Rows == nil {
		t.Fatalf("payload should carry empty columns and rows: %+v", payload)
	}
}

func TestAskCommandRejectsUnknownFormat(t *testing.T) {
	conv := newFakeConversation()
	_, stderr, code := runCLI(t, []string{"ask", "--format", "yaml", "q"}, Options{NewConversation: conv.factory()})
	if code != 1 || !strings.Contains(stderr, `unknown format "yaml"`) {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
	if len(conv.asked) != 0 {
		t.Fatalf("asked = %v", conv.asked)
	}
}

func TestSessionStartFailureIsReported(t *testing.T) {
	opts := Options{
		NewConversation: func(context.Context, config.Config, *slog.Logger) (Conversation, error) {
			return nil, errors.New("describe schema: connection refused")
		},
		NewLineReader: (&scriptedReader{}).factory(),
	}
	_, stderr, code := runCLI(t, nil, opts)
	if code != 1 || !strings.Contains(stderr, "start session: describe schema: connection refused") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"schema"}, &stdout, &stderr, Options{
		Lookup: mapLookup(map[string]string{"ASKDB_PROFILE": "staging"}),
	})
	if code != 1 || !strings.Contains(stderr.String(), "ASKDB_PROFILE") {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
}

func TestSchemaCommandDescribesDuckDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shop.duckdb")
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER, name VARCHAR)`,
		`CREATE TABLE orders (id INTEGER, customer_id INTEGER)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}
	_ = db.Close()

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"schema"}, &stdout, &stderr, Options{
		Lookup: mapLookup(map[string]string{
			"ASKDB_PROFILE":   "test",
			"ASKDB_DB_DRIVER": "duckdb",
			"ASKDB_DB_DSN":    dbPath,
			"ASKDB_DB_SCHEMA": "main",
		}),
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr.String())
	}
	want := "customers: id (INTEGER), name (VARCHAR)\norders: id (INTEGER), customer_id (INTEGER)\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestSeedRequiresPostgres(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"seed"}, &stdout, &stderr, Options{
		Lookup: mapLookup(map[string]string{"ASKDB_PROFILE": "test", "ASKDB_DB_DRIVER": "duckdb"}),
		OpenDB: func(context.Context, config.Config) (*sql.DB, error) {
			t.Fatal("OpenDB should not be called for duckdb")
			return nil, nil
		},
	})
	if code != 1 || !strings.Contains(stderr.String(), "seed requires the pgx driver") {
		t.Fatalf("code=%d stderr=%q", code, stderr.String())
	}
}

func TestSeedRunsScriptsInOneTransaction(t *testing.T) {
	scripts, err := seed.NewRunner().Scripts()
	if err != nil {
		t.Fatalf("Scripts() error = %v", err)
	}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	mock.ExpectBegin()
	for range scripts {
		mock.ExpectExec(".+").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	mock.ExpectClose()

	stdout, stderr, code := runCLI(t, []string{"seed"}, Options{
		OpenDB: func(context.Context, config.Config) (*sql.DB, error) { return db, nil },
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, "Sample data inserted successfully.") {
		t.Fatalf("stdout = %q", stdout)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestTranscriptCommandPrintsArchivedTurns(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	transcripts := newFakeTranscripts(t, map[string][]conversation.Turn{
		"sessions/date=2026-03-02/s1.parquet": {
			{Role: conversation.RoleUser, Text: "How many orders did Alice place?", At: at},
			{Role: conversation.RoleAssistant, Text: "```sql\n" + aliceSQL + "\n```", At: at.Add(time.Second)},
		},
	})

	stdout, stderr, code := runCLI(t, []string{"transcript", "sessions/date=2026-03-02/s1.parquet"}, Options{
		OpenTranscripts: transcripts.open,
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr)
	}
	if !containsAll(stdout, "User:", "How many orders did Alice place?", "Assistant:", "```sql", aliceSQL) {
		t.Fatalf("stdout = %q", stdout)
	}
	if strings.Index(stdout, "User:") > strings.Index(stdout, "Assistant:") {
		t.Fatalf("turns out of order: %q", stdout)
	}

	stdout, stderr, code = runCLI(t, []string{"transcript", "--format", "json", "sessions/date=2026-03-02/s1.parquet"}, Options{
		OpenTranscripts: transcripts.open,
	})
	if code != 0 {
		t.Fatalf("exit code = %d stderr=%s", code, stderr)
	}
	var turns []conversation.Turn
	if err := json.Unmarshal([]byte(stdout), &turns); err != nil {
		t.Fatalf("json decode failed: %v\n%s", err, stdout)
	}
	if len(turns) != 2 || turns[0].Role != conversation.RoleUser || !turns[1].At.Equal(at.Add(time.Second)) {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestTranscriptCommandReportsMissingKey(t *testing.T) {
	transcripts := newFakeTranscripts(t, nil)
	_, stderr, code := runCLI(t, []string{"transcript", "sessions/date=2026-03-02/nope.parquet"}, Options{
		OpenTranscripts: transcripts.open,
	})
	if code != 1 || !strings.Contains(stderr, `transcript "sessions/date=2026-03-02/nope.parquet" not found`) {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestTranscriptCommandReportsStoreErrors(t *testing.T) {
	_, stderr, code := runCLI(t, []string{"transcript", "sessions/x.parquet"}, Options{
		OpenTranscripts: func(context.Context, config.Config) (TranscriptLoader, error) {
			return nil, errors.New("object store bucket is required")
		},
	})
	if code != 1 || !strings.Contains(stderr, "open object store: object store bucket is required") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}

	_, stderr, code = runCLI(t, []string{"transcript"}, Options{
		OpenTranscripts: newFakeTranscripts(t, nil).open,
	})
	if code != 1 || !strings.Contains(stderr, "accepts 1 arg") {
		t.Fatalf("code=%d stderr=%q", code, stderr)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{[]byte("1200.00"), "1200.00"},
		{"Alice", "Alice"},
		{int64(2), "2"},
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2024-01-15"},
		{time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), "2024-01-15T09:30:00Z"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Fatalf("formatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func runCLI(t *testing.T, args []string, opts Options) (string, string, int) {
	t.Helper()
	if opts.Lookup == nil {
		opts.Lookup = mapLookup(map[string]string{"ASKDB_PROFILE": "test"})
	}
	if args == nil {
		args = []string{}
	}
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), args, &stdout, &stderr, opts)
	return stdout.String(), stderr.String(), code
}

type fakeConversation struct {
	answers    map[string]pipeline.Exchange
	askErr     error
	archiveKey string
	asked      []string
	history    []conversation.Turn
	closed     bool
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{answers: map[string]pipeline.Exchange{}}
}

func (f *fakeConversation) factory() func(context.Context, config.Config, *slog.Logger) (Conversation, error) {
	return func(context.Context, config.Config, *slog.Logger) (Conversation, error) {
		return f, nil
	}
}

func (f *fakeConversation) Ask(_ context.Context, question string) (pipeline.Exchange, error) {
	f.asked = append(f.asked, question)
	if f.askErr != nil {
		return pipeline.Exchange{}, f.askErr
	}
	exchange, ok := f.answers[question]
	if !ok {
		exchange = pipeline.Exchange{Question: question, Result: query.Failure("no statement found in model response")}
	}
	f.history = append(f.history,
		conversation.Turn{Role: conversation.RoleUser, Text: question},
		conversation.Turn{Role: conversation.RoleAssistant, Text: exchange.RawResponse},
	)
	return exchange, nil
}

func (f *fakeConversation) History() []conversation.Turn {
	return f.history
}

func (f *fakeConversation) SchemaText() string {
	return "customers: id (integer), name (character varying)\norders: id (integer), customer_id (integer)"
}

func (f *fakeConversation) Close(context.Context) (string, error) {
	f.closed = true
	return f.archiveKey, nil
}

// scriptedReader replays lines then reports EOF. With interrupt set, the
// first read reports Ctrl-C.
type scriptedReader struct {
	lines     []string
	interrupt bool
	closed    bool
}

func (r *scriptedReader) factory() func() (LineReader, error) {
	return func() (LineReader, error) { return r, nil }
}

func (r *scriptedReader) Readline() (string, error) {
	if r.interrupt {
		r.interrupt = false
		return "", readline.ErrInterrupt
	}
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type fakeTranscripts struct {
	objects map[string][]byte
}

func newFakeTranscripts(t *testing.T, transcripts map[string][]conversation.Turn) *fakeTranscripts {
	t.Helper()
	f := &fakeTranscripts{objects: map[string][]byte{}}
	for key, turns := range transcripts {
		data, err := archive.Encode(turns)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		f.objects[key] = data
	}
	return f
}

func (f *fakeTranscripts) open(context.Context, config.Config) (TranscriptLoader, error) {
	return f, nil
}

func (f *fakeTranscripts) Load(_ context.Context, key string) ([]archive.Record, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return archive.Decode(data)
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
