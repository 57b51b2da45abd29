package config

import (
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := GetDefaults()
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("Default configuration is invalid: %v", err)
	}

	if cfg.Vault.TTL != time.Hour {
		t.Errorf("Expected 1h vault TTL, got %s", cfg.Vault.TTL)
	}
	if cfg.Vault.AuditTTL != 24*time.Hour {
		t.Errorf("Expected 24h audit retention, got %s", cfg.Vault.AuditTTL)
	}
	if cfg.Context.StoreRadiusKm != 5.0 {
		t.Errorf("Expected 5km store radius, got %f", cfg.Context.StoreRadiusKm)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("RejectsUnknownVaultBackend", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Vault.Backend = "filesystem"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown vault backend")
		}
	})

	t.Run("RejectsNonPositiveTTL", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Vault.TTL = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for zero TTL")
		}
	})

	t.Run("RejectsInvertedWeatherThresholds", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Context.Weather.ColdBelowC = 30
		cfg.Context.Weather.HotAboveC = 15
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for cold threshold above hot threshold")
		}
	})

	t.Run("RejectsBadLogLevel", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown log level")
		}
	})
}

func TestValidateLoyaltyBands(t *testing.T) {
	t.Run("AcceptsAscendingBands", func(t *testing.T) {
		bands := []TierBand{
			{Name: "bronze", MinSpend: 0},
			{Name: "silver", MinSpend: 2500},
			{Name: "gold", MinSpend: 7500},
		}
		if err := validateLoyaltyBands(bands); err != nil {
			t.Errorf("Valid bands rejected: %v", err)
		}
	})

	t.Run("RejectsEmpty", func(t *testing.T) {
		if err := validateLoyaltyBands(nil); err == nil {
			t.Error("Expected error for empty bands")
		}
	})

	t.Run("RejectsNonZeroFirstBand", func(t *testing.T) {
		bands := []TierBand{{Name: "silver", MinSpend: 2500}}
		if err := validateLoyaltyBands(bands); err == nil {
			t.Error("Expected error when first band does not start at 0")
		}
	})

	t.Run("RejectsNonAscending", func(t *testing.T) {
		bands := []TierBand{
			{Name: "bronze", MinSpend: 0},
			{Name: "gold", MinSpend: 7500},
			{Name: "silver", MinSpend: 2500},
		}
		if err := validateLoyaltyBands(bands); err == nil {
			t.Error("Expected error for non-ascending bands")
		}
	})

	t.Run("RejectsDuplicateBound", func(t *testing.T) {
		bands := []TierBand{
			{Name: "bronze", MinSpend: 0},
			{Name: "silver", MinSpend: 2500},
			{Name: "gold", MinSpend: 2500},
		}
		if err := validateLoyaltyBands(bands); err == nil {
			t.Error("Expected error for duplicate band bound")
		}
	})

	t.Run("RejectsUnnamedBand", func(t *testing.T) {
		bands := []TierBand{
			{Name: "bronze", MinSpend: 0},
			{Name: "", MinSpend: 2500},
		}
		if err := validateLoyaltyBands(bands); err == nil {
			t.Error("Expected error for unnamed band")
		}
	})
}
