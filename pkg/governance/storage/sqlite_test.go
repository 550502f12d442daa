package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	want := &Entry{
		Key:       "api_coingecko_simple/price_ids=ethereum",
		Value:     []byte(`{"ethereum":{"usd":3000}}`),
		ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Millisecond),
	}
	if err := store.Set(ctx, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, want.Key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil after Set")
	}
	if string(got.Value) != string(want.Value) {
		t.Errorf("Value = %s, want %s", got.Value, want.Value)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v (millisecond precision)", got.ExpiresAt, want.ExpiresAt)
	}
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, value := range []string{"first", "second"} {
		if err := store.Set(ctx, &Entry{Key: "k", Value: []byte(value)}); err != nil {
			t.Fatalf("Set(%s) error = %v", value, err)
		}
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Value) != "second" {
		t.Errorf("Value = %s after overwrite, want second", got.Value)
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	store := newTestSQLiteStore(t)

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Set(ctx, &Entry{Key: "api_usage_svc_2026-08", Value: []byte("42")}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "api_usage_svc_2026-08")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || string(got.Value) != "42" {
		t.Errorf("Get() after reopen = %+v, want value 42", got)
	}
}

func TestSQLiteStoreKeysPrefix(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, key := range []string{"api_a_1", "api_a_2", "api_b_1"} {
		if err := store.Set(ctx, &Entry{Key: key, Value: []byte("v")}); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	keys, err := store.Keys(ctx, "api_a_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys(api_a_) = %v, want 2 keys", keys)
	}
}

func TestSQLiteStorePurgeExpired(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []*Entry{
		{Key: "expired", Value: []byte("v"), ExpiresAt: now.Add(-time.Minute)},
		{Key: "fresh", Value: []byte("v"), ExpiresAt: now.Add(time.Minute)},
		{Key: "forever", Value: []byte("v")},
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

	// Zero expiry means never expires, even against a far-future now.
	purged, err = store.PurgeExpired(ctx, now.Add(100*365*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("second purge = %d (fresh entry), got forever purged too?", purged)
	}
	if got, _ := store.Get(ctx, "forever"); got == nil {
		t.Error("zero-expiry entry was purged")
	}
}

func TestSQLiteStoreCloseIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore(\"\") error = nil, want error")
	}
}
