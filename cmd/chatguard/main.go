package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/audit"
	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/directory"
	"github.com/sunnyshin8/chatguard/internal/logger"
	"github.com/sunnyshin8/chatguard/internal/personalize"
	"github.com/sunnyshin8/chatguard/internal/privacy"
	"github.com/sunnyshin8/chatguard/internal/vault"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")

		maskText   = flag.String("mask", "", "Mask PII in the given text and print the result")
		unmaskText = flag.String("unmask", "", "Restore masked tokens in the given text")
		sessionID  = flag.String("session", "", "Session identifier for mask/unmask/expire")
		expire     = flag.Bool("expire", false, "Expire all vault entries for the session")

		customerID = flag.String("context", "", "Build prompt context for the given customer")
		lat        = flag.Float64("lat", 0, "Caller latitude for context building")
		lon        = flag.Float64("lon", 0, "Caller longitude for context building")
		storeID    = flag.String("store", "", "Look up a single store by id")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ChatGuard %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case *maskText != "":
		result, err := app.engine.Mask(ctx, *maskText, *sessionID)
		if err != nil {
			log.Error("Masking failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(result)
	case *unmaskText != "":
		if *sessionID == "" {
			fmt.Fprintln(os.Stderr, "-unmask requires -session")
			os.Exit(2)
		}
		restored, missing, err := app.engine.Unmask(ctx, *unmaskText, *sessionID)
		if err != nil {
			log.Error("Unmasking failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(map[string]interface{}{
			"text":           restored,
			"missing_tokens": missing,
		})
	case *expire:
		if *sessionID == "" {
			fmt.Fprintln(os.Stderr, "-expire requires -session")
			os.Exit(2)
		}
		if err := app.vault.ExpireAll(ctx, *sessionID); err != nil {
			log.Error("Session expiry failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(map[string]string{"status": "expired"})
	case *customerID != "":
		if err := app.connectDirectory(cfg, log); err != nil {
			log.Error("Directory connection failed", zap.Error(err))
			os.Exit(1)
		}
		promptCtx, err := app.aggregator.Build(ctx, *customerID,
			personalize.Coordinates{Latitude: *lat, Longitude: *lon}, *storeID)
		if err != nil {
			log.Error("Context build failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(promptCtx)
	case *storeID != "":
		if err := app.connectDirectory(cfg, log); err != nil {
			log.Error("Directory connection failed", zap.Error(err))
			os.Exit(1)
		}
		store, err := app.directory.GetStore(ctx, *storeID)
		if err != nil {
			log.Error("Store lookup failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(store)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// app holds the wired components for one invocation
type app struct {
	store      vault.TTLStore
	vault      *vault.Vault
	engine     *privacy.Engine
	directory  *directory.PostgresDirectory
	aggregator *personalize.Aggregator
}

func newApp(_ context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	store, err := newStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("vault store: %w", err)
	}

	vlt := vault.New(store, cfg.Vault, log.WithComponent("vault"))
	sink := audit.MultiSink{
		audit.NewLoggerSink(log.WithComponent("audit")),
		audit.NewStoreSink(store, cfg.Vault.AuditTTL),
	}

	engine, err := privacy.New(cfg.Privacy, vlt, sink, log.WithComponent("privacy"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("privacy engine: %w", err)
	}

	return &app{store: store, vault: vlt, engine: engine}, nil
}

// connectDirectory lazily opens the database; only the context and
// store commands need it.
func (a *app) connectDirectory(cfg *config.Config, log *logger.Logger) error {
	dir, err := directory.NewPostgresDirectory(&directory.Config{
		DatabaseURL:     cfg.Database.DatabaseURL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, log.Logger)
	if err != nil {
		return err
	}
	a.directory = dir
	a.aggregator = personalize.NewAggregator(dir, dir,
		personalize.NewStaticProvider(), a.store, cfg.Context, log.Logger)
	return nil
}

func (a *app) Close() {
	a.engine.Close()
	if a.directory != nil {
		a.directory.Close()
	}
	a.store.Close()
}

func newStore(cfg *config.Config, log *logger.Logger) (vault.TTLStore, error) {
	switch cfg.Vault.Backend {
	case "memory":
		return vault.NewMemoryStore(cfg.Vault.ReapInterval), nil
	default:
		// The vault layer already namespaces its keys with
		// cfg.Vault.KeyPrefix; an empty store-level prefix keeps the
		// Redis key layout identical to the memory backend's.
		return vault.NewRedisStore(vault.RedisConfig{
			URL:            cfg.Cache.RedisURL,
			KeyPrefix:      "",
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DialTimeout:    cfg.Cache.DialTimeout,
		}, log.Logger)
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}
	return logger.New(loggerConfig)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
