package conversation

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func TestAppendKeepsInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := store.Append(Turn{Role: role, Text: fmt.Sprintf("turn-%d", i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	history := store.History()
	if len(history) != 5 || store.Len() != 5 {
		t.Fatalf("len(history) = %d, Len() = %d", len(history), store.Len())
	}
	for i, turn := range history {
		if turn.Text != fmt.Sprintf("turn-%d", i) {
			t.Fatalf("history[%d] = %q", i, turn.Text)
		}
		if turn.At.IsZero() {
			t.Fatalf("history[%d].At is zero", i)
		}
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Append(Turn{Role: "system", Text: "x"}); err == nil {
		t.Fatal("expected error for system role")
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d", store.Len())
	}
}

func TestAppendPreservesExplicitTimestamp(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	_ = store.Append(Turn{Role: RoleUser, Text: "q", At: at})
	if got := store.History()[0].At; !got.Equal(at) {
		t.Fatalf("At = %v, want %v", got, at)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Append(Turn{Role: RoleUser, Text: "original"})

	history := store.History()
	history[0].Text = "mutated"

	if got := store.History()[0].Text; got != "original" {
		t.Fatalf("stored text = %q", got)
	}
}

func TestConcurrentAppendsAreAllRecorded(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(Turn{Role: RoleUser, Text: "q"})
			_ = store.History()
		}()
	}
	wg.Wait()
	if store.Len() != 50 {
		t.Fatalf("Len() = %d", store.Len())
	}
}

func TestWindow(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "q1"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleUser, Text: "q2"},
		{Role: RoleAssistant, Text: "a2"},
		{Role: RoleUser, Text: "q3"},
		{Role: RoleAssistant, Text: "a3"},
	}

	if got := Window(history, 0); len(got) != 6 {
		t.Fatalf("Window(0) len = %d", len(got))
	}
	if got := Window(history, 10); len(got) != 6 {
		t.Fatalf("Window(10) len = %d", len(got))
	}

	got := Window(history, 2)
	if len(got) != 4 || got[0].Text != "q2" || got[3].Text != "a3" {
		t.Fatalf("Window(2) = %+v", got)
	}
}

func TestWindowNeverStartsOnAssistantTurn(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "q1"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleAssistant, Text: "a1-extra"},
		{Role: RoleUser, Text: "q2"},
		{Role: RoleAssistant, Text: "a2"},
	}
	got := Window(history, 2)
	if len(got) == 0 || got[0].Role != RoleUser {
		t.Fatalf("Window(2) = %+v", got)
	}
	if got[0].Text != "q2" {
		t.Fatalf("Window(2)[0] = %q", got[0].Text)
	}
}

func TestWindowHandlesHugeLimits(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "q1"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleUser, Text: "q2"},
	}
	for _, limit := range []int{math.MaxInt, math.MaxInt/2 + 1, 4611686018427387905} {
		got := Window(history, limit)
		if len(got) != len(history) {
			t.Fatalf("Window(%d) len = %d, want %d", limit, len(got), len(history))
		}
	}
	if got := Window(history, 1); len(got) != 1 || got[0].Text != "q2" {
		t.Fatalf("Window(1) = %+v", got)
	}
}
