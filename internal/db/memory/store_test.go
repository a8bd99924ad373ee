package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/studybuddy/internal/db"
)

func TestHSetWithTTL_RoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.HSetWithTTL(ctx, "k", map[string]string{"a": "1", "b": "2"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.HSetWithTTL(ctx, "k", map[string]string{"b": "3"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := s.HGetAll(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["a"] != "1" || m["b"] != "3" {
		t.Errorf("expected merged fields, got %v", m)
	}
}

func TestHGetAll_ReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, 0)

	m, _ := s.HGetAll(ctx, "k")
	m["a"] = "mutated"

	again, _ := s.HGetAll(ctx, "k")
	if again["a"] != "1" {
		t.Errorf("caller mutation leaked into the store: %v", again)
	}
}

func TestHGetAll_Missing(t *testing.T) {
	m, err := NewStore().HGetAll(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || len(m) != 0 {
		t.Errorf("expected empty non-nil map, got %v", m)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, time.Hour)
	if s.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", s.Len())
	}

	now = now.Add(time.Hour)
	m, _ := s.HGetAll(ctx, "k")
	if len(m) != 0 {
		t.Errorf("expected expired key to be gone, got %v", m)
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 keys, got %d", s.Len())
	}
}

func TestCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.HSetWithTTL(ctx, "k", map[string]string{"a": "1"}, 0)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpHSet {
		t.Fatalf("expected db.Error with op HSET, got %v", err)
	}
	if _, err := s.HGetAll(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPingAndReady(t *testing.T) {
	s := NewStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Errorf("wait: %v", err)
	}
	_ = s.HSetWithTTL(context.Background(), "k", map[string]string{"a": "1"}, 0)
	s.Close()
	if s.Len() != 0 {
		t.Error("close must drop data")
	}
}
