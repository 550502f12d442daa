package storage

import (
	"context"
	"sort"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	entry := &Entry{
		Key:       "api_svc_ep",
		Value:     []byte(`{"n":1}`),
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := store.Set(ctx, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, "api_svc_ep")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil after Set")
	}
	if string(got.Value) != `{"n":1}` {
		t.Errorf("Value = %s, want %s", got.Value, entry.Value)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped on write")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

func TestMemoryStoreReturnsExpiredEntriesAsIs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Set(ctx, &Entry{
		Key:       "k",
		Value:     []byte("v"),
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Expired entries stay readable until purged; the cache's stale
	// fallback depends on this.
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get(expired) = nil, want the entry")
	}
	if !got.Expired(time.Now()) {
		t.Error("Expired() = false for a past expiry")
	}
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	value := []byte("original")
	if err := store.Set(ctx, &Entry{Key: "k", Value: value}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, _ := store.Get(ctx, "k")
	if string(got.Value) != "original" {
		t.Errorf("stored value mutated through caller's slice: %s", got.Value)
	}

	got.Value[0] = 'Y'
	again, _ := store.Get(ctx, "k")
	if string(again.Value) != "original" {
		t.Errorf("stored value mutated through returned slice: %s", again.Value)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, &Entry{Key: "k", Value: []byte("v")}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := store.Get(ctx, "k"); got != nil {
		t.Errorf("Get() = %+v after Delete, want nil", got)
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

func TestMemoryStoreKeysPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"api_a_1", "api_a_2", "api_b_1", "api_usage_a_2026-08"} {
		if err := store.Set(ctx, &Entry{Key: key, Value: []byte("v")}); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	keys, err := store.Keys(ctx, "api_a_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)

	if len(keys) != 2 || keys[0] != "api_a_1" || keys[1] != "api_a_2" {
		t.Errorf("Keys(api_a_) = %v, want [api_a_1 api_a_2]", keys)
	}
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	entries := []*Entry{
		{Key: "expired", Value: []byte("v"), ExpiresAt: now.Add(-time.Minute)},
		{Key: "fresh", Value: []byte("v"), ExpiresAt: now.Add(time.Minute)},
		{Key: "forever", Value: []byte("v")}, // zero expiry = never expires
	}
	for _, e := range entries {
		if err := store.Set(ctx, e); err != nil {
			t.Fatalf("Set(%s) error = %v", e.Key, err)
		}
	}

	purged, err := store.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	for _, key := range []string{"fresh", "forever"} {
		if got, _ := store.Get(ctx, key); got == nil {
			t.Errorf("%s purged, want kept", key)
		}
	}
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, ""); err == nil {
		t.Error("Get(\"\") error = nil, want error")
	}
	if err := store.Set(ctx, &Entry{Key: ""}); err == nil {
		t.Error("Set(empty key) error = nil, want error")
	}
	if err := store.Set(ctx, nil); err == nil {
		t.Error("Set(nil) error = nil, want error")
	}
}
