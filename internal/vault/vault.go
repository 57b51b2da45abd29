package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/logger"
)

// Mapping is the stored record for one (session, token) pair. The absolute
// expiry travels with the value so a Get never returns data past its
// expiresAt, even when the backing store's own eviction lags.
type Mapping struct {
	Original  string    `json:"original"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Vault is the session-scoped reversible token store. Each (sessionId,
// token) key is independently mutable; per-key atomicity is delegated to
// the backing store, so no global lock exists here.
type Vault struct {
	store  TTLStore
	prefix string
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a token vault over the given TTL store
func New(store TTLStore, cfg config.VaultConfig, log *logger.Logger) *Vault {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "pii"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Vault{
		store:  store,
		prefix: prefix,
		ttl:    ttl,
		logger: log,
	}
}

// Put stores the original value for a masked token. Re-putting the same
// (session, token) key is a refresh: the mapping is replaced and its
// absolute expiry reset, never extended for orphaned data.
func (v *Vault) Put(ctx context.Context, sessionID, token, original, kind string) error {
	now := time.Now()
	mapping := Mapping{
		Original:  original,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(v.ttl),
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := v.store.Put(ctx, v.key(sessionID, token), string(data), v.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Get returns the original value for a token, or ErrNotFound when the
// mapping is absent or expired. Expiry is double-checked against the
// mapping's own expiresAt so correctness does not depend on backend
// eviction timing.
func (v *Vault) Get(ctx context.Context, sessionID, token string) (string, error) {
	data, err := v.store.Get(ctx, v.key(sessionID, token))
	if err != nil {
		return "", err
	}

	var mapping Mapping
	if err := json.Unmarshal([]byte(data), &mapping); err != nil {
		// Corrupted entry: drop it and report a miss
		_ = v.store.Delete(ctx, v.key(sessionID, token))
		v.logger.Warn("Dropped corrupted vault mapping",
			zap.String("session_hash", logger.HashSession(sessionID)))
		return "", ErrNotFound
	}

	if time.Now().After(mapping.ExpiresAt) {
		_ = v.store.Delete(ctx, v.key(sessionID, token))
		return "", ErrNotFound
	}

	return mapping.Original, nil
}

// ExpireAll removes every mapping for a session. This is the explicit
// right-to-erasure hook.
func (v *Vault) ExpireAll(ctx context.Context, sessionID string) error {
	prefix := fmt.Sprintf("%s:%s:", v.prefix, sessionID)
	keys, err := v.store.Keys(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to list session mappings: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := v.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete session mappings: %w", err)
	}

	v.logger.Info("Session mappings erased",
		zap.String("session_hash", logger.HashSession(sessionID)),
		zap.Int("mappings", len(keys)))
	return nil
}

// TTL returns the configured mapping lifetime
func (v *Vault) TTL() time.Duration { return v.ttl }

func (v *Vault) key(sessionID, token string) string {
	return fmt.Sprintf("%s:%s:%s", v.prefix, sessionID, token)
}
