package storage

import (
	"testing"
	"time"
)

func TestBuildTranscriptPathUsesUTCDate(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 22, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildTranscriptPath("3f1c9a2e-8d2b-4c43-9a55-0c6f3b1d2e7a", ts)
	if err != nil {
		t.Fatalf("BuildTranscriptPath() error = %v", err)
	}
	want := "sessions/date=2026-02-20/3f1c9a2e-8d2b-4c43-9a55-0c6f3b1d2e7a.parquet"
	if key != want {
		t.Fatalf("BuildTranscriptPath() = %q, want %q", key, want)
	}
}

func TestBuildTranscriptPathRejectsInvalidInput(t *testing.T) {
	if _, err := BuildTranscriptPath("../oops", time.Now()); err == nil {
		t.Fatal("expected invalid session id error")
	}
	if _, err := BuildTranscriptPath("", time.Now()); err == nil {
		t.Fatal("expected empty session id error")
	}
	if _, err := BuildTranscriptPath("abc", time.Time{}); err == nil {
		t.Fatal("expected zero time error")
	}
}
