package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"testing"
	"time"
)

func TestWatchSurvivesAtomicReplace(t *testing.T) {
	st := newTestStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() { done <- st.Watch(ctx, logger) }()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	// Simulate an atomic replace: the path briefly disappears, then a
	// file shows up under the same name again.
	moved := st.Path() + ".moved"
	if err := os.Rename(st.Path(), moved); err != nil {
		t.Fatalf("cannot move database file: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Rename(moved, st.Path()); err != nil {
		t.Fatalf("cannot move database file back: %v", err)
	}

	// The watcher must still notice writes after the replace.
	if err := WriteTable(ctx, st.Path(), "extra", []string{"id"}, []map[string]any{{"id": int64(1)}}, true); err != nil {
		t.Fatalf("WriteTable returned error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Contains(st.Tables(ctx), "extra") {
			cancel()
			<-done
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("watcher did not pick up a write after the file was replaced")
}
