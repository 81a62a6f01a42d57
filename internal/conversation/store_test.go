package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/discovery-widget/internal/leads"
)

func sampleState() *State {
	ts := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return &State{
		ConversationID:   "conv_abc",
		Messages:         []Message{{Role: RoleAssistant, Content: "Hi!", Timestamp: ts}, {Role: RoleUser, Content: "hello", Timestamp: ts}},
		LeadInfo:         leads.Info{Name: "Carlos", Email: "carlos@computech.support"},
		LeadCaptured:     true,
		MessageCount:     2,
		UserMessageCount: 1,
		CreatedAt:        ts,
		Timestamp:        ts,
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Load(ctx, "k"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	want := sampleState()
	if err := store.Save(ctx, "k", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ConversationID != want.ConversationID || len(got.Messages) != 2 || got.LeadInfo != want.LeadInfo {
		t.Fatalf("unexpected state: %#v", got)
	}
	if !got.Messages[0].Timestamp.Equal(want.Messages[0].Timestamp) {
		t.Fatalf("timestamp not preserved: %v", got.Messages[0].Timestamp)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := store.Load(ctx, "k"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CorruptBlob(t *testing.T) {
	store := NewMemoryStore()
	store.Put("k", []byte("{not json"))
	if _, err := store.Load(context.Background(), "k"); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}

	store.Put("k", []byte(`{"messages":[]}`))
	if _, err := store.Load(context.Background(), "k"); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState for missing id, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	exerciseStore(t, store)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultStateKey+".json"), []byte("garbage"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(context.Background(), DefaultStateKey); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestFileStore_SanitizesKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save(context.Background(), "../escape", sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "___escape.json" {
		t.Fatalf("unexpected files: %v", entries)
	}
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatalf("expected error for blank dir")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	exerciseStore(t, NewRedisStore(client, nil, 0))
}

func TestRedisStore_AppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, nil, time.Hour)

	if err := store.Save(context.Background(), "session-1", sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ttl := mr.TTL("widget_state:session-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Load(context.Background(), "session-1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expired state to be gone, got %v", err)
	}
}

func TestRedisStore_CorruptBlob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, nil, 0)
	if err := mr.Set("widget_state:x", "[]"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(context.Background(), "x"); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}
