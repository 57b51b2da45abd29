package vault

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("PutGetRoundtrip", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Close()

		if err := store.Put(ctx, "k1", "v1", time.Hour); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		value, err := store.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "v1" {
			t.Errorf("Expected v1, got %q", value)
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Close()

		if _, err := store.Get(ctx, "absent"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("LazyExpiry", func(t *testing.T) {
		// reaper disabled: expiry must still be enforced on read
		store := NewMemoryStore(0)
		defer store.Close()

		if err := store.Put(ctx, "k1", "v1", 10*time.Millisecond); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)

		if _, err := store.Get(ctx, "k1"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound after TTL, got %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("Expected lazy expiry to remove the entry, got %d entries", store.Len())
		}
	})

	t.Run("EagerReaper", func(t *testing.T) {
		store := NewMemoryStore(5 * time.Millisecond)
		defer store.Close()

		if err := store.Put(ctx, "k1", "v1", time.Millisecond); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		deadline := time.Now().Add(time.Second)
		for store.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if store.Len() != 0 {
			t.Error("Reaper did not evict expired entry")
		}
	})

	t.Run("KeysFiltersPrefixAndExpired", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Close()

		store.Put(ctx, "a:1", "v", time.Hour)
		store.Put(ctx, "a:2", "v", time.Millisecond)
		store.Put(ctx, "b:1", "v", time.Hour)
		time.Sleep(5 * time.Millisecond)

		keys, err := store.Keys(ctx, "a:")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != 1 || keys[0] != "a:1" {
			t.Errorf("Expected [a:1], got %v", keys)
		}
	})

	t.Run("DeleteMultiple", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Close()

		store.Put(ctx, "k1", "v", time.Hour)
		store.Put(ctx, "k2", "v", time.Hour)
		if err := store.Delete(ctx, "k1", "k2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if store.Len() != 0 {
			t.Errorf("Expected empty store, got %d entries", store.Len())
		}
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
		t.Helper()
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(RedisConfig{
			URL:       "redis://" + mr.Addr(),
			KeyPrefix: "pii",
		}, zap.NewNop())
		if err != nil {
			t.Fatalf("Failed to create redis store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store, mr
	}

	t.Run("PutGetRoundtrip", func(t *testing.T) {
		store, _ := newStore(t)

		if err := store.Put(ctx, "k1", "v1", time.Hour); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		value, err := store.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "v1" {
			t.Errorf("Expected v1, got %q", value)
		}
	})

	t.Run("MissMapsToNotFound", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Get(ctx, "absent"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ServerSideExpiry", func(t *testing.T) {
		store, mr := newStore(t)

		if err := store.Put(ctx, "k1", "v1", time.Minute); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		mr.FastForward(2 * time.Minute)

		if _, err := store.Get(ctx, "k1"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound after TTL, got %v", err)
		}
	})

	t.Run("KeysStripNamespace", func(t *testing.T) {
		store, _ := newStore(t)

		store.Put(ctx, "pii:s1:t1", "v", time.Hour)
		store.Put(ctx, "pii:s2:t1", "v", time.Hour)

		keys, err := store.Keys(ctx, "pii:s1:")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != 1 || keys[0] != "pii:s1:t1" {
			t.Errorf("Expected [pii:s1:t1], got %v", keys)
		}
	})
}

// frozenStore never expires entries; used to prove the vault enforces
// its own expiry independent of backend eviction timing.
type frozenStore struct {
	entries map[string]string
}

func (s *frozenStore) Put(_ context.Context, key, value string, _ time.Duration) error {
	s.entries[key] = value
	return nil
}

func (s *frozenStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *frozenStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

func (s *frozenStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for key := range s.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *frozenStore) Close() error { return nil }

func TestVault(t *testing.T) {
	ctx := context.Background()

	newVault := func(ttl time.Duration) (*Vault, *MemoryStore) {
		store := NewMemoryStore(0)
		return New(store, config.VaultConfig{KeyPrefix: "pii", TTL: ttl}, testLogger()), store
	}

	t.Run("PutGetRoundtrip", func(t *testing.T) {
		vlt, store := newVault(time.Hour)
		defer store.Close()

		if err := vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "+91-9876543210", "phone"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		value, err := vlt.Get(ctx, "sess-1", "[PHONE_MASKED_0]")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "+91-9876543210" {
			t.Errorf("Expected original value, got %q", value)
		}
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		vlt, store := newVault(time.Hour)
		defer store.Close()

		vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "9876543210", "phone")
		if _, err := vlt.Get(ctx, "sess-2", "[PHONE_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound across sessions, got %v", err)
		}
	})

	t.Run("ExpiryIndependentOfBackend", func(t *testing.T) {
		store := &frozenStore{entries: make(map[string]string)}
		vlt := New(store, config.VaultConfig{KeyPrefix: "pii", TTL: 10 * time.Millisecond}, testLogger())

		vlt.Put(ctx, "sess-1", "[EMAIL_MASKED_0]", "a@b.com", "email")
		time.Sleep(20 * time.Millisecond)

		// the backend still holds the entry, the vault must not return it
		if len(store.entries) != 1 {
			t.Fatal("Test store unexpectedly evicted the entry")
		}
		if _, err := vlt.Get(ctx, "sess-1", "[EMAIL_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound past embedded expiry, got %v", err)
		}
	})

	t.Run("RefreshResetsExpiry", func(t *testing.T) {
		vlt, store := newVault(50 * time.Millisecond)
		defer store.Close()

		vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "9876543210", "phone")
		time.Sleep(30 * time.Millisecond)
		vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "9876543210", "phone")
		time.Sleep(30 * time.Millisecond)

		// 60ms after the first put, 30ms after the refresh: still live
		if _, err := vlt.Get(ctx, "sess-1", "[PHONE_MASKED_0]"); err != nil {
			t.Errorf("Expected refreshed mapping to be live, got %v", err)
		}
	})

	t.Run("ExpireAllRemovesSessionOnly", func(t *testing.T) {
		vlt, store := newVault(time.Hour)
		defer store.Close()

		vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "9876543210", "phone")
		vlt.Put(ctx, "sess-1", "[EMAIL_MASKED_0]", "a@b.com", "email")
		vlt.Put(ctx, "sess-2", "[PHONE_MASKED_0]", "9123456789", "phone")

		if err := vlt.ExpireAll(ctx, "sess-1"); err != nil {
			t.Fatalf("ExpireAll failed: %v", err)
		}

		if _, err := vlt.Get(ctx, "sess-1", "[PHONE_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected sess-1 phone gone, got %v", err)
		}
		if _, err := vlt.Get(ctx, "sess-1", "[EMAIL_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected sess-1 email gone, got %v", err)
		}
		if _, err := vlt.Get(ctx, "sess-2", "[PHONE_MASKED_0]"); err != nil {
			t.Errorf("Expected sess-2 untouched, got %v", err)
		}
	})

	t.Run("CorruptedEntryBehavesAsMiss", func(t *testing.T) {
		vlt, store := newVault(time.Hour)
		defer store.Close()

		store.Put(ctx, "pii:sess-1:[PHONE_MASKED_0]", "not json", time.Hour)
		if _, err := vlt.Get(ctx, "sess-1", "[PHONE_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound for corrupted entry, got %v", err)
		}
	})

	t.Run("OverMiniredis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(RedisConfig{
			URL:       "redis://" + mr.Addr(),
			KeyPrefix: "pii",
		}, zap.NewNop())
		if err != nil {
			t.Fatalf("Failed to create redis store: %v", err)
		}
		defer store.Close()

		vlt := New(store, config.VaultConfig{KeyPrefix: "pii", TTL: time.Hour}, testLogger())

		vlt.Put(ctx, "sess-1", "[CARD_MASKED_0]", "4111-1111-1111-1111", "payment_card")
		value, err := vlt.Get(ctx, "sess-1", "[CARD_MASKED_0]")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "4111-1111-1111-1111" {
			t.Errorf("Expected original card, got %q", value)
		}

		if err := vlt.ExpireAll(ctx, "sess-1"); err != nil {
			t.Fatalf("ExpireAll failed: %v", err)
		}
		if _, err := vlt.Get(ctx, "sess-1", "[CARD_MASKED_0]"); err != ErrNotFound {
			t.Errorf("Expected ErrNotFound after ExpireAll, got %v", err)
		}
	})

	t.Run("KeyLayoutMatchesMemoryBackend", func(t *testing.T) {
		// With no store-level namespace the vault's own prefix is the only
		// one applied, so Redis ends up with the same pii:session:token
		// keys the memory backend uses, not pii:pii:... ones.
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(RedisConfig{
			URL: "redis://" + mr.Addr(),
		}, zap.NewNop())
		if err != nil {
			t.Fatalf("Failed to create redis store: %v", err)
		}
		defer store.Close()

		vlt := New(store, config.VaultConfig{KeyPrefix: "pii", TTL: time.Hour}, testLogger())
		if err := vlt.Put(ctx, "sess-1", "[PHONE_MASKED_0]", "+91-9876543210", "phone"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		keys := mr.Keys()
		if len(keys) != 1 {
			t.Fatalf("Expected 1 key, got %v", keys)
		}
		if keys[0] != "pii:sess-1:[PHONE_MASKED_0]" {
			t.Errorf("Unexpected key layout: %q", keys[0])
		}
	})
}
