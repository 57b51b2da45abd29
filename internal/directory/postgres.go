package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// PostgresDirectory implements CustomerDirectory, StoreDirectory and Writer
// over PostgreSQL
type PostgresDirectory struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresDirectory connects to the database and verifies the connection
func NewPostgresDirectory(config *Config, logger *zap.Logger) (*PostgresDirectory, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	dir := &PostgresDirectory{
		db:     db,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Directory initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return dir, nil
}

// GetCustomer fetches a customer profile by identifier
func (d *PostgresDirectory) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	query := `
		SELECT id, name, masked_phone, masked_email, preferences,
		       purchase_history, loyalty_tier, created_at, updated_at
		FROM customers
		WHERE id = $1`

	var customer Customer
	if err := d.db.GetContext(ctx, &customer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	return &customer, nil
}

// GetInteractionStats returns count and recency of a customer's interactions
func (d *PostgresDirectory) GetInteractionStats(ctx context.Context, customerID string) (*InteractionStats, error) {
	query := `
		SELECT COUNT(id) AS interaction_count,
		       MAX(created_at) AS last_interaction
		FROM interactions
		WHERE customer_id = $1`

	var stats InteractionStats
	if err := d.db.GetContext(ctx, &stats, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to query interaction stats: %w", err)
	}
	return &stats, nil
}

// ListStores returns all stores. The fleet is small enough that distance
// filtering happens in the aggregator, matching the upstream data model.
func (d *PostgresDirectory) ListStores(ctx context.Context) ([]Store, error) {
	query := `
		SELECT id, name, store_type, cuisine_type, latitude, longitude,
		       open_hours, current_promotions, inventory, created_at, updated_at
		FROM stores`

	var stores []Store
	if err := d.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	return stores, nil
}

// GetStore fetches a store by identifier
func (d *PostgresDirectory) GetStore(ctx context.Context, id string) (*Store, error) {
	query := `
		SELECT id, name, store_type, cuisine_type, latitude, longitude,
		       open_hours, current_promotions, inventory, created_at, updated_at
		FROM stores
		WHERE id = $1`

	var store Store
	if err := d.db.GetContext(ctx, &store, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	return &store, nil
}

// InsertCustomers batch-inserts customer records, used only by the seed
// pipeline. Conflicting IDs are skipped.
func (d *PostgresDirectory) InsertCustomers(ctx context.Context, customers []Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO customers (id, name, masked_phone, masked_email,
		                       preferences, purchase_history, loyalty_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	inserted := 0
	for _, customer := range customers {
		res, err := tx.ExecContext(ctx, query,
			customer.ID,
			customer.Name,
			customer.MaskedPhone,
			customer.MaskedEmail,
			customer.Preferences,
			customer.PurchaseHistory,
			customer.LoyaltyTier,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert customer %s: %w", customer.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit customer batch: %w", err)
	}

	d.logger.Debug("Customer batch inserted",
		zap.Int("batch", len(customers)),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// InsertStores batch-inserts store records, used only by the seed pipeline
func (d *PostgresDirectory) InsertStores(ctx context.Context, stores []Store) (int, error) {
	if len(stores) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO stores (id, name, store_type, cuisine_type, latitude,
		                    longitude, open_hours, current_promotions, inventory)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	inserted := 0
	for _, store := range stores {
		res, err := tx.ExecContext(ctx, query,
			store.ID,
			store.Name,
			store.StoreType,
			store.CuisineType,
			store.Latitude,
			store.Longitude,
			store.OpenHours,
			store.Promotions,
			store.Inventory,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert store %s: %w", store.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit store batch: %w", err)
	}

	d.logger.Debug("Store batch inserted",
		zap.Int("batch", len(stores)),
		zap.Int("inserted", inserted))
	return inserted, nil
}

// Close closes the database connection
func (d *PostgresDirectory) Close() error {
	return d.db.Close()
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	if idx := strings.Index(url, "://"); idx != -1 {
		rest := url[idx+3:]
		if at := strings.Index(rest, "@"); at != -1 {
			creds := rest[:at]
			if colon := strings.Index(creds, ":"); colon != -1 {
				return url[:idx+3] + creds[:colon] + ":***@" + rest[at+1:]
			}
		}
	}
	return url
}
