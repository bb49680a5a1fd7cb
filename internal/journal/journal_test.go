package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/crlotwhite/ucra-go/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.JournalConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// All operations are no-ops without a database.
	if err := s.RecordSession(context.Background(), "s1", "sine", 44100, 1); err != nil {
		t.Fatalf("record session: %v", err)
	}
	events, err := s.SessionEvents(context.Background(), "s1", 10)
	if err != nil || events != nil {
		t.Fatalf("expected no events, got %v (%v)", events, err)
	}
}

func TestRecordAndQuery(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "session",
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.RecordSession(context.Background(), "render-1", "sine", 44100, 2); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if err := s.RecordEvent(context.Background(), "render-1", "started", ""); err != nil {
		t.Fatalf("record event: %v", err)
	}
	if err := s.RecordEvent(context.Background(), "render-1", "completed", "frames=2048"); err != nil {
		t.Fatalf("record event: %v", err)
	}

	events, err := s.SessionEvents(context.Background(), "render-1", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "started" || events[1].Kind != "completed" {
		t.Fatalf("unexpected order: %v, %v", events[0].Kind, events[1].Kind)
	}
	if events[1].Detail != "frames=2048" {
		t.Fatalf("unexpected detail: %q", events[1].Detail)
	}
}

func TestPrune(t *testing.T) {
	cfg := config.JournalConfig{
		Path:          filepath.Join(t.TempDir(), "journal.db"),
		RetentionMode: "persistent",
		RetentionDays: 1,
		MaxSessions:   1,
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.RecordSession(context.Background(), "old", "sine", 44100, 1); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if err := s.RecordEvent(context.Background(), "old", "started", ""); err != nil {
		t.Fatalf("record event: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.RecordSession(context.Background(), "new", "sine", 44100, 1); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if events, _ := s.SessionEvents(context.Background(), "old", 10); len(events) != 0 {
		t.Fatalf("expected old events pruned, got %d", len(events))
	}
}
