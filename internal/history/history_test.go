package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/tablerag/internal/config"
	"github.com/JonMunkholm/tablerag/internal/core"
)

func entry(id string, finished time.Time) core.HistoryEntry {
	return core.HistoryEntry{
		SessionID:   id,
		Kind:        core.SessionUpload,
		FileName:    id + ".csv",
		DisplayName: id,
		State:       "succeeded",
		StartedAt:   finished.Add(-time.Second),
		FinishedAt:  finished,
	}
}

// exerciseStore runs the behaviour shared by every store.
func exerciseStore(t *testing.T, store core.HistoryStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, entry(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	got, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "c" || got[1].SessionID != "b" {
		t.Fatalf("List(2) = %v, want c, b", ids(got))
	}

	// Re-recording a session updates it in place.
	updated := entry("a", base.Add(5*time.Hour))
	updated.State = "failed"
	updated.Message = "bad header row"
	if err := store.Record(ctx, updated); err != nil {
		t.Fatalf("Record(update) error = %v", err)
	}
	got, _ = store.List(ctx, 10)
	if len(got) != 3 || got[0].SessionID != "a" || got[0].Message != "bad header row" {
		t.Fatalf("after update List() = %v", ids(got))
	}

	purged, err := store.Purge(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("Purge() = %d, want 1", purged)
	}
	got, _ = store.List(ctx, 10)
	if len(got) != 2 || got[0].SessionID != "a" || got[1].SessionID != "c" {
		t.Errorf("after purge List() = %v, want a, c", ids(got))
	}
}

func ids(entries []core.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SessionID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStoreCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		_ = store.Record(ctx, entry(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Second)))
	}
	got, _ := store.List(ctx, 0)
	if len(got) != 3 || got[0].SessionID != "s4" || got[2].SessionID != "s2" {
		t.Errorf("List() = %v, want s4, s3, s2", ids(got))
	}
}

func TestMemoryStoreDuration(t *testing.T) {
	e := entry("x", time.Now())
	if e.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", e.Duration())
	}
}

// TestPostgresStore runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2, MinConns: 0})
	if err != nil {
		t.Fatalf("OpenPool() error = %v", err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE upload_history"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, store)
}
