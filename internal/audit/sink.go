// Package audit emits hash-only compliance records for masking activity.
// Records carry kind counts and a hashed session identifier, never raw
// values or tokens that could be reversed without the vault.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/logger"
	"github.com/sunnyshin8/chatguard/internal/vault"
)

// Record is a single write-once audit entry
type Record struct {
	SessionHash string         `json:"session_hash"`
	KindCounts  map[string]int `json:"kind_counts"`
	Methods     []string       `json:"methods"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewRecord builds a record stamped with the current time
func NewRecord(sessionHash string, kindCounts map[string]int, methods []string) Record {
	return Record{
		SessionHash: sessionHash,
		KindCounts:  kindCounts,
		Methods:     methods,
		Timestamp:   time.Now().UTC(),
	}
}

// Sink persists audit records
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// LoggerSink writes audit records to the structured log
type LoggerSink struct {
	logger *logger.Logger
}

// NewLoggerSink creates a log-backed sink
func NewLoggerSink(log *logger.Logger) *LoggerSink {
	return &LoggerSink{logger: log}
}

func (s *LoggerSink) Write(_ context.Context, rec Record) error {
	s.logger.Info("PII audit record",
		zap.String("session_hash", rec.SessionHash),
		zap.Any("kind_counts", rec.KindCounts),
		zap.Strings("methods", rec.Methods),
		zap.Time("audit_timestamp", rec.Timestamp),
	)
	return nil
}

// StoreSink keeps audit records in a TTL store for later retrieval, expiring
// them after the retention window.
type StoreSink struct {
	store vault.TTLStore
	ttl   time.Duration
}

// NewStoreSink creates a store-backed sink with the given retention
func NewStoreSink(store vault.TTLStore, ttl time.Duration) *StoreSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StoreSink{store: store, ttl: ttl}
}

func (s *StoreSink) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	key := fmt.Sprintf("audit:%s:%d", rec.SessionHash, rec.Timestamp.UnixNano())
	if err := s.store.Put(ctx, key, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to store audit record: %w", err)
	}
	return nil
}

// MultiSink fans a record out to several sinks; the first error wins but
// every sink is attempted.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, rec Record) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Write(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
