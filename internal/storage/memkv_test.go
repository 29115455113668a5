package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"support-dojo/server/internal/interfaces"
)

func TestMemKVSetGet(t *testing.T) {
	kv := NewMemKVNoJanitor()
	ctx := context.Background()

	if err := kv.SetWithTTL(ctx, "k", "v", 0); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Errorf("expected %q, got %q", "v", got)
	}
}

func TestMemKVMissingKey(t *testing.T) {
	kv := NewMemKVNoJanitor()

	_, err := kv.Get(context.Background(), "absent")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemKVTTLExpiry(t *testing.T) {
	kv := NewMemKVNoJanitor()
	ctx := context.Background()

	if err := kv.SetWithTTL(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if _, err := kv.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	_, err := kv.Get(ctx, "k")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound after TTL, got %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("expected 0 live entries, got %d", kv.Len())
	}
}

func TestMemKVZeroTTLNeverExpires(t *testing.T) {
	kv := NewMemKVNoJanitor()
	ctx := context.Background()

	if err := kv.SetWithTTL(ctx, "k", "v", 0); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := kv.Get(ctx, "k"); err != nil {
		t.Errorf("zero TTL entry should not expire: %v", err)
	}
}

func TestMemKVDelete(t *testing.T) {
	kv := NewMemKVNoJanitor()
	ctx := context.Background()

	kv.SetWithTTL(ctx, "k", "v", 0)
	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "k"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemKVOverwrite(t *testing.T) {
	kv := NewMemKVNoJanitor()
	ctx := context.Background()

	kv.SetWithTTL(ctx, "k", "old", 0)
	kv.SetWithTTL(ctx, "k", "new", 0)

	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "new" {
		t.Errorf("expected overwritten value %q, got %q", "new", got)
	}
}
