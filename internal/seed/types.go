// Package seed loads customer and store directory data from dataset
// files or generates deterministic development fixtures.
package seed

import (
	"path/filepath"
	"time"
)

// CustomerRecord is one customer row from an input dataset
type CustomerRecord struct {
	ID              string `csv:"id" parquet:"id" json:"id"`
	Name            string `csv:"name" parquet:"name" json:"name"`
	MaskedPhone     string `csv:"masked_phone" parquet:"masked_phone" json:"masked_phone"`
	MaskedEmail     string `csv:"masked_email" parquet:"masked_email" json:"masked_email"`
	Preferences     string `csv:"preferences" parquet:"preferences" json:"preferences"`
	PurchaseHistory string `csv:"purchase_history" parquet:"purchase_history" json:"purchase_history"`
	LoyaltyTier     string `csv:"loyalty_tier" parquet:"loyalty_tier" json:"loyalty_tier"`
}

// StoreRecord is one store row from an input dataset
type StoreRecord struct {
	ID         string  `csv:"id" parquet:"id" json:"id"`
	Name       string  `csv:"name" parquet:"name" json:"name"`
	StoreType  string  `csv:"store_type" parquet:"store_type" json:"store_type"`
	Latitude   float64 `csv:"latitude" parquet:"latitude" json:"latitude"`
	Longitude  float64 `csv:"longitude" parquet:"longitude" json:"longitude"`
	OpenHours  string  `csv:"open_hours" parquet:"open_hours" json:"open_hours"`
	Promotions string  `csv:"promotions" parquet:"promotions" json:"promotions"`
	Inventory  string  `csv:"inventory" parquet:"inventory" json:"inventory"`
}

// Result summarizes one seed run
type Result struct {
	TotalRecords int64         `json:"total_records"`
	Inserted     int64         `json:"inserted"`
	Skipped      int64         `json:"skipped"`
	Invalid      int64         `json:"invalid"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
}

// EntityKind selects which directory table a dataset feeds
type EntityKind string

const (
	EntityCustomers EntityKind = "customers"
	EntityStores    EntityKind = "stores"
)

// FileFormat represents supported dataset file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects the dataset format from the file extension
func DetectFileFormat(filename string) FileFormat {
	switch filepath.Ext(filename) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl":
		return FormatJSON
	default:
		return FormatCSV
	}
}
