package privacy

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/audit"
	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/logger"
	"github.com/sunnyshin8/chatguard/internal/vault"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func testEngine(t *testing.T) (*Engine, *vault.Vault, *vault.MemoryStore) {
	t.Helper()

	store := vault.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })

	vlt := vault.New(store, config.VaultConfig{
		KeyPrefix: "pii",
		TTL:       time.Hour,
	}, testLogger())

	engine, err := New(config.PrivacyConfig{
		Enabled:   true,
		Detectors: []string{"all"},
	}, vlt, nil, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, vlt, store
}

func TestEngineMask(t *testing.T) {
	ctx := context.Background()

	t.Run("NameAndPhone", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		result, err := engine.Mask(ctx, "Call me Rajesh at +91-9876543210", "sess-1")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}

		if result.FindingCount != 2 {
			t.Fatalf("Expected 2 findings, got %d: %+v", result.FindingCount, result.Findings)
		}
		if !strings.Contains(result.MaskedText, "[PERSON_MASKED_0]") {
			t.Errorf("Name not replaced with placeholder: %q", result.MaskedText)
		}
		if !strings.Contains(result.MaskedText, "+91-****-****-3210") {
			t.Errorf("Phone not partially redacted: %q", result.MaskedText)
		}
		if strings.Contains(result.MaskedText, "Rajesh") {
			t.Errorf("Original name leaked into masked text: %q", result.MaskedText)
		}
		if !result.Reversible() {
			t.Errorf("Expected reversible result, got VaultErr=%v", result.VaultErr)
		}
	})

	t.Run("FindingsNonOverlappingAndOrdered", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		text := "Priya's card 4111-1111-1111-1111, aadhaar 1234 5678 9012, " +
			"mail priya@shop.in, pan ABCDE1234F, phone 9876543210"
		result, err := engine.Mask(ctx, text, "sess-2")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if result.FindingCount < 5 {
			t.Fatalf("Expected at least 5 findings, got %d", result.FindingCount)
		}
		for i := 1; i < len(result.Findings); i++ {
			prev, cur := result.Findings[i-1], result.Findings[i]
			if cur.Start < prev.End {
				t.Errorf("Findings overlap: %+v then %+v", prev, cur)
			}
			if cur.Start < prev.Start {
				t.Errorf("Findings not ordered by start: %+v then %+v", prev, cur)
			}
		}
	})

	t.Run("MaskingMaskedTextIsStable", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		first, err := engine.Mask(ctx, "Rajesh: 9876543210, rajesh@example.com", "sess-3")
		if err != nil {
			t.Fatalf("First mask failed: %v", err)
		}
		second, err := engine.Mask(ctx, first.MaskedText, "sess-3")
		if err != nil {
			t.Fatalf("Second mask failed: %v", err)
		}
		if second.FindingCount != 0 {
			t.Errorf("Masked text produced new findings: %+v", second.Findings)
		}
		if second.MaskedText != first.MaskedText {
			t.Errorf("Re-masking changed text: %q -> %q", first.MaskedText, second.MaskedText)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		result, err := engine.Mask(ctx, "", "sess-4")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if result.FindingCount != 0 || result.MaskedText != "" {
			t.Errorf("Empty input produced findings: %+v", result)
		}
	})

	t.Run("GeneratesSessionWhenEmpty", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		result, err := engine.Mask(ctx, "call 9876543210", "")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if result.SessionID == "" {
			t.Error("Expected generated session id")
		}
	})

	t.Run("DisabledEngine", func(t *testing.T) {
		engine, err := New(config.PrivacyConfig{
			Enabled:   false,
			Detectors: []string{"all"},
		}, nil, nil, testLogger())
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}
		defer engine.Close()

		result, err := engine.Mask(ctx, "call 9876543210", "sess-5")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if result.MaskedText != "call 9876543210" || result.FindingCount != 0 {
			t.Errorf("Disabled engine modified text: %+v", result)
		}
	})

	t.Run("UnknownDetectorRejected", func(t *testing.T) {
		_, err := New(config.PrivacyConfig{
			Enabled:   true,
			Detectors: []string{"phone", "does_not_exist"},
		}, nil, nil, testLogger())
		if err == nil {
			t.Fatal("Expected error for unknown detector name")
		}
	})

	t.Run("SubsetOfDetectors", func(t *testing.T) {
		engine, err := New(config.PrivacyConfig{
			Enabled:   true,
			Detectors: []string{"phone"},
		}, nil, nil, testLogger())
		if err != nil {
			t.Fatalf("Failed to create engine: %v", err)
		}
		defer engine.Close()

		result, err := engine.Mask(ctx, "Rajesh: rajesh@example.com, 9876543210", "sess-6")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if result.FindingCount != 1 || result.Findings[0].Kind != KindPhone {
			t.Errorf("Expected only phone finding, got %+v", result.Findings)
		}
	})
}

func TestEngineUnmask(t *testing.T) {
	ctx := context.Background()

	t.Run("RestoresPlaceholders", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		masked, err := engine.Mask(ctx, "This is Rajesh and Priya speaking", "sess-7")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if masked.FindingCount != 2 {
			t.Fatalf("Expected 2 name findings, got %d", masked.FindingCount)
		}

		restored, missing, err := engine.Unmask(ctx, masked.MaskedText, "sess-7")
		if err != nil {
			t.Fatalf("Unmask failed: %v", err)
		}
		if len(missing) != 0 {
			t.Errorf("Unexpected missing tokens: %v", missing)
		}
		if restored != "This is Rajesh and Priya speaking" {
			t.Errorf("Roundtrip mismatch: %q", restored)
		}
	})

	t.Run("WrongSessionReportsMissing", func(t *testing.T) {
		engine, _, _ := testEngine(t)

		masked, err := engine.Mask(ctx, "This is Rajesh speaking", "sess-8")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}

		restored, missing, err := engine.Unmask(ctx, masked.MaskedText, "other-session")
		if err != nil {
			t.Fatalf("Unmask failed: %v", err)
		}
		if len(missing) != 1 {
			t.Errorf("Expected 1 missing token, got %v", missing)
		}
		if restored != masked.MaskedText {
			t.Errorf("Missing tokens should stay in place: %q", restored)
		}
	})

	t.Run("ExpiredSessionReportsMissing", func(t *testing.T) {
		engine, vlt, _ := testEngine(t)

		masked, err := engine.Mask(ctx, "This is Rajesh speaking", "sess-9")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if err := vlt.ExpireAll(ctx, "sess-9"); err != nil {
			t.Fatalf("ExpireAll failed: %v", err)
		}

		_, missing, err := engine.Unmask(ctx, masked.MaskedText, "sess-9")
		if err != nil {
			t.Fatalf("Unmask failed: %v", err)
		}
		if len(missing) != 1 {
			t.Errorf("Expected 1 missing token after expiry, got %v", missing)
		}
	})

	t.Run("VaultValueRetrievableByToken", func(t *testing.T) {
		engine, vlt, _ := testEngine(t)

		masked, err := engine.Mask(ctx, "phone 9876543210", "sess-10")
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		// structured kinds show a redaction in text, but the vault still
		// holds the token mapping for privileged reversal
		value, err := vlt.Get(ctx, "sess-10", "[PHONE_MASKED_0]")
		if err != nil {
			t.Fatalf("Vault get failed: %v", err)
		}
		if value != "9876543210" {
			t.Errorf("Expected original phone in vault, got %q", value)
		}
		if strings.Contains(masked.MaskedText, "[PHONE_MASKED_0]") {
			t.Errorf("Structured kind should be redacted, not tokenized: %q", masked.MaskedText)
		}
	})
}

func TestEngineAudit(t *testing.T) {
	ctx := context.Background()

	store := vault.NewMemoryStore(0)
	defer store.Close()

	sink := audit.NewStoreSink(store, time.Hour)
	engine, err := New(config.PrivacyConfig{
		Enabled:   true,
		Detectors: []string{"all"},
	}, nil, sink, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Mask(ctx, "Rajesh: 9876543210", "sess-11"); err != nil {
		t.Fatalf("Mask failed: %v", err)
	}

	keys, err := store.Keys(ctx, "audit:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("Expected 1 audit record, got %d", len(keys))
	}

	raw, err := store.Get(ctx, keys[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if strings.Contains(raw, "sess-11") {
		t.Error("Audit record contains raw session id")
	}
	if strings.Contains(raw, "9876543210") || strings.Contains(raw, "Rajesh") {
		t.Error("Audit record contains raw PII values")
	}
	if !strings.Contains(raw, logger.HashSession("sess-11")) {
		t.Error("Audit record missing session hash")
	}
}
