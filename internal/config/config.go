package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/chatguard/")
	viper.AddConfigPath("$HOME/.chatguard/")

	// Environment variable overrides
	viper.SetEnvPrefix("CHATGUARD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Vault.Backend != "redis" && config.Vault.Backend != "memory" {
		return fmt.Errorf("invalid vault backend: %s (must be redis or memory)", config.Vault.Backend)
	}

	if config.Vault.TTL <= 0 {
		return fmt.Errorf("vault ttl must be positive, got %s", config.Vault.TTL)
	}

	if config.Context.StoreRadiusKm <= 0 {
		return fmt.Errorf("store radius must be positive, got %f", config.Context.StoreRadiusKm)
	}

	if config.Context.StoreLimit <= 0 {
		return fmt.Errorf("store limit must be positive, got %d", config.Context.StoreLimit)
	}

	if err := validateLoyaltyBands(config.Context.Loyalty.Bands); err != nil {
		return err
	}

	if config.Context.Weather.ColdBelowC >= config.Context.Weather.HotAboveC {
		return fmt.Errorf("weather cold threshold %f must be below hot threshold %f",
			config.Context.Weather.ColdBelowC, config.Context.Weather.HotAboveC)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// validateLoyaltyBands checks that tier bands are well-formed: at least one
// band, the first starting at zero, strictly ascending lower bounds.
func validateLoyaltyBands(bands []TierBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("loyalty bands must not be empty")
	}

	if bands[0].MinSpend != 0 {
		return fmt.Errorf("first loyalty band must start at 0, got %f", bands[0].MinSpend)
	}

	for i, band := range bands {
		if band.Name == "" {
			return fmt.Errorf("loyalty band %d has no name", i)
		}
		if i > 0 && band.MinSpend <= bands[i-1].MinSpend {
			return fmt.Errorf("loyalty bands must be strictly ascending: %q (%f) after %q (%f)",
				band.Name, band.MinSpend, bands[i-1].Name, bands[i-1].MinSpend)
		}
	}

	return nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := &Config{}
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			return
		}

		callback(newConfig)
	})

	return nil
}
