// Package archive persists finished conversation transcripts as parquet
// objects so they can be inspected later with any columnar tool.
package archive

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/conversation"
	"github.com/askdb/askdb/internal/storage"
)

const contentType = "application/vnd.apache.parquet"

// Record is one transcript row. Sequence is the zero-based turn position.
type Record struct {
	Sequence int64  `parquet:"sequence"`
	Role     string `parquet:"role"`
	Text     string `parquet:"text"`
	AtUnixMs int64  `parquet:"at_unix_ms"`
}

func Encode(turns []conversation.Turn) ([]byte, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("turns are required")
	}
	rows := make([]Record, 0, len(turns))
	for i, turn := range turns {
		rows = append(rows, Record{
			Sequence: int64(i),
			Role:     string(turn.Role),
			Text:     turn.Text,
			AtUnixMs: turn.At.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Record](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) ([]Record, error) {
	records, err := parquet.Read[Record](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records, nil
}

type Archiver struct {
	store   storage.ObjectStore
	timeout time.Duration
}

// NewArchiver wraps store. timeout <= 0 leaves uploads bounded only by ctx.
func NewArchiver(store storage.ObjectStore, timeout time.Duration) *Archiver {
	return &Archiver{store: store, timeout: timeout}
}

// Save writes turns under the session's transcript key and returns the key.
// An empty transcript is skipped and returns an empty key.
func (a *Archiver) Save(ctx context.Context, sessionID string, startedAt time.Time, turns []conversation.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}
	key, err := storage.BuildTranscriptPath(sessionID, startedAt)
	if err != nil {
		return "", err
	}
	data, err := Encode(turns)
	if err != nil {
		return "", err
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("archive transcript: %w", err)
	}
	return key, nil
}

// Turns converts decoded records back into conversation turns ordered by
// sequence. Timestamps come back in UTC.
func Turns(records []Record) []conversation.Turn {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	turns := make([]conversation.Turn, 0, len(sorted))
	for _, record := range sorted {
		turns = append(turns, conversation.Turn{
			Role: conversation.Role(record.Role),
			Text: record.Text,
			At:   time.UnixMilli(record.AtUnixMs).UTC(),
		})
	}
	return turns
}

// Load fetches and decodes the transcript stored under key. A missing object
// is reported as storage.ErrObjectNotFound.
func (a *Archiver) Load(ctx context.Context, key string) ([]Record, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read transcript %q: %w", key, err)
	}
	return Decode(data)
}
