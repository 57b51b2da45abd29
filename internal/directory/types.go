// Package directory provides read-only access to customer and store records.
// The aggregation core consumes it by identifier and never writes back; the
// write path exists solely for the seed pipeline.
package directory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("directory: not found")

// JSONMap is a JSONB-backed object column
type JSONMap map[string]interface{}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// JSONList is a JSONB-backed array column. Elements are whatever the stored
// document holds, typically objects or plain strings.
type JSONList []interface{}

// Scan implements sql.Scanner
func (l *JSONList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Value implements driver.Valuer
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// JSONStringMap is a JSONB-backed string-to-string column (opening hours)
type JSONStringMap map[string]string

// Scan implements sql.Scanner
func (m *JSONStringMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// Value implements driver.Valuer
func (m JSONStringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func scanJSON(src, dest interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dest)
	case string:
		return json.Unmarshal([]byte(data), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// Customer holds a customer profile. Contact fields are stored masked; raw
// contact data never reaches this table.
type Customer struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	MaskedPhone     string    `db:"masked_phone" json:"masked_phone"`
	MaskedEmail     string    `db:"masked_email" json:"masked_email"`
	Preferences     JSONMap   `db:"preferences" json:"preferences"`
	PurchaseHistory JSONList  `db:"purchase_history" json:"purchase_history"`
	LoyaltyTier     string    `db:"loyalty_tier" json:"loyalty_tier"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Store holds a store's location and operational data
type Store struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	StoreType   string         `db:"store_type" json:"store_type"`
	CuisineType sql.NullString `db:"cuisine_type" json:"-"`
	Latitude    float64        `db:"latitude" json:"latitude"`
	Longitude   float64        `db:"longitude" json:"longitude"`
	OpenHours   JSONStringMap  `db:"open_hours" json:"open_hours"`
	Promotions  JSONList       `db:"current_promotions" json:"current_promotions"`
	Inventory   JSONMap        `db:"inventory" json:"inventory"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// InteractionStats summarizes a customer's interaction history
type InteractionStats struct {
	Count int64        `db:"interaction_count" json:"interaction_count"`
	Last  sql.NullTime `db:"last_interaction" json:"-"`
}

// CustomerDirectory provides read-only customer queries by identifier
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	GetInteractionStats(ctx context.Context, customerID string) (*InteractionStats, error)
}

// StoreDirectory provides read-only store queries
type StoreDirectory interface {
	ListStores(ctx context.Context) ([]Store, error)
	GetStore(ctx context.Context, id string) (*Store, error)
}

// Writer is the seed pipeline's batch-insert surface
type Writer interface {
	InsertCustomers(ctx context.Context, customers []Customer) (int, error)
	InsertStores(ctx context.Context, stores []Store) (int, error)
}
