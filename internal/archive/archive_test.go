package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/storage"
)

func TestSaveWritesParquetTranscript(t *testing.T) {
	store := newMemoryStore()
	archiver := NewArchiver(store, time.Second)
	started := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "How many orders did Alice place?", At: started},
		{Role: conversation.RoleAssistant, Text: "```sql\nSELECT COUNT(*) FROM orders;\n```", At: started.Add(2 * time.Second)},
	}

	key, err := archiver.Save(context.Background(), "session-1", started, turns)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if key != "sessions/date=2026-03-02/session-1.parquet" {
		t.Fatalf("key = %q", key)
	}
	if store.contentTypes[key] != contentType {
		t.Fatalf("content type = %q", store.contentTypes[key])
	}

	records, err := archiver.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d", len(records))
	}
	if records[0].Sequence != 0 || records[0].Role != "user" || records[0].Text != turns[0].Text {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if records[1].Sequence != 1 || records[1].Role != "assistant" {
		t.Fatalf("records[1] = %+v", records[1])
	}
	if records[1].AtUnixMs != started.Add(2*time.Second).UnixMilli() {
		t.Fatalf("records[1].AtUnixMs = %d", records[1].AtUnixMs)
	}
}

func TestSaveSkipsEmptyTranscript(t *testing.T) {
	store := newMemoryStore()
	key, err := NewArchiver(store, 0).Save(context.Background(), "session-1", time.Now(), nil)
	if err != nil || key != "" {
		t.Fatalf("Save() = %q, %v", key, err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("objects written = %d", len(store.objects))
	}
}

func TestSavePropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("bucket unavailable")
	_, err := NewArchiver(store, 0).Save(context.Background(), "session-1", time.Now(), []conversation.Turn{{Role: conversation.RoleUser, Text: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "bucket unavailable") {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestLoadMissingTranscript(t *testing.T) {
	_, err := NewArchiver(newMemoryStore(), 0).Load(context.Background(), "sessions/nope.parquet")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Load() error = %v, want ErrObjectNotFound", err)
	}
}

func TestLoadedRecordsConvertBackToTurns(t *testing.T) {
	store := newMemoryStore()
	archiver := NewArchiver(store, time.Second)
	started := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Text: "List customers from India", At: started},
		{Role: conversation.RoleAssistant, Text: "SELECT * FROM customers WHERE country = 'India';", At: started.Add(time.Second)},
	}
	key, err := archiver.Save(context.Background(), "session-2", started, turns)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	records, err := archiver.Load(context.Background(), key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := Turns([]Record{records[1], records[0]})
	if len(got) != 2 {
		t.Fatalf("Turns() = %+v", got)
	}
	for i := range turns {
		if got[i].Role != turns[i].Role || got[i].Text != turns[i].Text || !got[i].At.Equal(turns[i].At) {
			t.Fatalf("Turns()[%d] = %+v, want %+v", i, got[i], turns[i])
		}
	}
	if got[0].At.Location() != time.UTC {
		t.Fatalf("At location = %v", got[0].At.Location())
	}
}

func TestEncodeRequiresTurns(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

type memoryStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.contentTypes[key] = opts.ContentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
