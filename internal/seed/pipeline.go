package seed

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/directory"
)

// maxConsecutiveReadErrors bounds how long a run tolerates a reader that
// keeps failing without producing a record before the run aborts.
const maxConsecutiveReadErrors = 25

// Pipeline loads directory datasets in rate-limited batches
type Pipeline struct {
	writer directory.Writer
	cfg    config.SeedConfig
	logger *zap.Logger

	limiter *rate.Limiter
}

// NewPipeline creates a seed pipeline. Writes are paced by the
// configured writes-per-second budget so seeding never starves the
// serving path of database connections.
func NewPipeline(writer directory.Writer, cfg config.SeedConfig, logger *zap.Logger) *Pipeline {
	wps := cfg.WritesPerSec
	if wps <= 0 {
		wps = 200
	}
	burst := cfg.BatchSize
	if burst <= 0 {
		burst = 500
	}
	return &Pipeline{
		writer:  writer,
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(wps), burst),
	}
}

// SeedFile loads one dataset file into the directory
func (p *Pipeline) SeedFile(ctx context.Context, filePath string, kind EntityKind) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	format := DetectFileFormat(filePath)
	p.logger.Info("starting seed run",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.String("entity", string(kind)),
		zap.Int("batch_size", p.cfg.BatchSize))

	start := time.Now()
	result := &Result{}

	var err error
	switch kind {
	case EntityCustomers:
		err = p.seedCustomers(ctx, filePath, format, result)
	case EntityStores:
		err = p.seedStores(ctx, filePath, format, result)
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}

	p.logger.Info("seed run completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("inserted", result.Inserted),
		zap.Int64("skipped", result.Skipped),
		zap.Int64("invalid", result.Invalid),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Generate inserts deterministic fixture data, for development setups
// without a dataset file.
func (p *Pipeline) Generate(ctx context.Context, customers, storesPerCity int, seed int64) (*Result, error) {
	start := time.Now()
	result := &Result{}
	gen := NewGenerator(seed)

	if err := p.insertCustomers(ctx, gen.Customers(customers), result); err != nil {
		return result, err
	}
	if err := p.insertStores(ctx, gen.Stores(storesPerCity), result); err != nil {
		return result, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// ExportCSV writes deterministic fixture data to CSV dataset files so a
// generated dataset can be inspected or replayed with SeedFile.
func (p *Pipeline) ExportCSV(customersPath, storesPath string, customers, storesPerCity int, seed int64) error {
	gen := NewGenerator(seed)

	if err := writeCustomerCSV(customersPath, gen.Customers(customers)); err != nil {
		return fmt.Errorf("export customers: %w", err)
	}
	if err := writeStoreCSV(storesPath, gen.Stores(storesPerCity)); err != nil {
		return fmt.Errorf("export stores: %w", err)
	}
	return nil
}

func (p *Pipeline) seedCustomers(ctx context.Context, filePath string, format FileFormat, result *Result) error {
	read, closeFn, err := customerReader(filePath, format, p.logger)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := make([]directory.Customer, 0, p.cfg.BatchSize)
		consecutiveErrs := 0
		for len(batch) < p.cfg.BatchSize {
			rec, err := read()
			if err == io.EOF {
				break
			}
			if err != nil {
				// A decoder-level error (malformed JSON, truncated parquet)
				// repeats without advancing the reader, so a run of them
				// means the rest of the file is unreadable.
				consecutiveErrs++
				if consecutiveErrs >= maxConsecutiveReadErrors {
					return fmt.Errorf("aborting after %d consecutive read errors: %w", consecutiveErrs, err)
				}
				p.logger.Warn("skipping unreadable record", zap.Error(err))
				result.Invalid++
				continue
			}
			consecutiveErrs = 0
			result.TotalRecords++
			customer, ok := p.convertCustomer(rec)
			if !ok {
				result.Invalid++
				continue
			}
			batch = append(batch, customer)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := p.insertCustomers(ctx, batch, result); err != nil {
			return err
		}
		p.reportProgress(result)
	}
}

func (p *Pipeline) seedStores(ctx context.Context, filePath string, format FileFormat, result *Result) error {
	read, closeFn, err := storeReader(filePath, format, p.logger)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := make([]directory.Store, 0, p.cfg.BatchSize)
		consecutiveErrs := 0
		for len(batch) < p.cfg.BatchSize {
			rec, err := read()
			if err == io.EOF {
				break
			}
			if err != nil {
				consecutiveErrs++
				if consecutiveErrs >= maxConsecutiveReadErrors {
					return fmt.Errorf("aborting after %d consecutive read errors: %w", consecutiveErrs, err)
				}
				p.logger.Warn("skipping unreadable record", zap.Error(err))
				result.Invalid++
				continue
			}
			consecutiveErrs = 0
			result.TotalRecords++
			store, ok := p.convertStore(rec)
			if !ok {
				result.Invalid++
				continue
			}
			batch = append(batch, store)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := p.insertStores(ctx, batch, result); err != nil {
			return err
		}
		p.reportProgress(result)
	}
}

func (p *Pipeline) insertCustomers(ctx context.Context, batch []directory.Customer, result *Result) error {
	if len(batch) == 0 {
		return nil
	}
	if err := p.limiter.WaitN(ctx, len(batch)); err != nil {
		return err
	}
	inserted, err := p.writer.InsertCustomers(ctx, batch)
	if err != nil {
		return fmt.Errorf("insert customers: %w", err)
	}
	result.Inserted += int64(inserted)
	result.Skipped += int64(len(batch) - inserted)
	return nil
}

func (p *Pipeline) insertStores(ctx context.Context, batch []directory.Store, result *Result) error {
	if len(batch) == 0 {
		return nil
	}
	if err := p.limiter.WaitN(ctx, len(batch)); err != nil {
		return err
	}
	inserted, err := p.writer.InsertStores(ctx, batch)
	if err != nil {
		return fmt.Errorf("insert stores: %w", err)
	}
	result.Inserted += int64(inserted)
	result.Skipped += int64(len(batch) - inserted)
	return nil
}

// convertCustomer validates and converts a dataset record. Embedded
// JSON columns that fail to parse degrade to empty values rather than
// rejecting the row, unless validation is strict.
func (p *Pipeline) convertCustomer(rec *CustomerRecord) (directory.Customer, bool) {
	if p.cfg.ValidateData {
		if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.Name) == "" {
			p.logger.Debug("invalid customer record: missing id or name")
			return directory.Customer{}, false
		}
	}
	now := time.Now().UTC()
	customer := directory.Customer{
		ID:          strings.TrimSpace(rec.ID),
		Name:        strings.TrimSpace(rec.Name),
		MaskedPhone: rec.MaskedPhone,
		MaskedEmail: rec.MaskedEmail,
		LoyaltyTier: rec.LoyaltyTier,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rec.Preferences != "" {
		if err := json.Unmarshal([]byte(rec.Preferences), &customer.Preferences); err != nil && p.cfg.ValidateData {
			p.logger.Debug("invalid customer preferences json", zap.String("id", rec.ID))
			return directory.Customer{}, false
		}
	}
	if rec.PurchaseHistory != "" {
		if err := json.Unmarshal([]byte(rec.PurchaseHistory), &customer.PurchaseHistory); err != nil && p.cfg.ValidateData {
			p.logger.Debug("invalid customer purchase history json", zap.String("id", rec.ID))
			return directory.Customer{}, false
		}
	}
	return customer, true
}

func (p *Pipeline) convertStore(rec *StoreRecord) (directory.Store, bool) {
	if p.cfg.ValidateData {
		if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.Name) == "" {
			p.logger.Debug("invalid store record: missing id or name")
			return directory.Store{}, false
		}
		if rec.Latitude < -90 || rec.Latitude > 90 || rec.Longitude < -180 || rec.Longitude > 180 {
			p.logger.Debug("invalid store coordinates", zap.String("id", rec.ID))
			return directory.Store{}, false
		}
	}
	now := time.Now().UTC()
	store := directory.Store{
		ID:        strings.TrimSpace(rec.ID),
		Name:      strings.TrimSpace(rec.Name),
		StoreType: rec.StoreType,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.OpenHours != "" {
		if err := json.Unmarshal([]byte(rec.OpenHours), &store.OpenHours); err != nil {
			// plain "07:00-22:00" strings are accepted as a daily schedule
			store.OpenHours = directory.JSONStringMap{"daily": rec.OpenHours}
		}
	}
	if rec.Promotions != "" {
		if err := json.Unmarshal([]byte(rec.Promotions), &store.Promotions); err != nil && p.cfg.ValidateData {
			p.logger.Debug("invalid store promotions json", zap.String("id", rec.ID))
			return directory.Store{}, false
		}
	}
	if rec.Inventory != "" {
		if err := json.Unmarshal([]byte(rec.Inventory), &store.Inventory); err != nil && p.cfg.ValidateData {
			p.logger.Debug("invalid store inventory json", zap.String("id", rec.ID))
			return directory.Store{}, false
		}
	}
	return store, true
}

func (p *Pipeline) reportProgress(result *Result) {
	if p.cfg.ProgressReport <= 0 {
		return
	}
	if result.TotalRecords%int64(p.cfg.ProgressReport) == 0 && result.TotalRecords > 0 {
		p.logger.Info("seed progress",
			zap.Int64("records", result.TotalRecords),
			zap.Int64("inserted", result.Inserted),
			zap.Int64("invalid", result.Invalid))
	}
}

// customerReader returns a record-at-a-time reader for the given format
func customerReader(filePath string, format FileFormat, logger *zap.Logger) (func() (*CustomerRecord, error), func(), error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}

	switch format {
	case FormatCSV:
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = 7
		if _, err := reader.Read(); err != nil { // header
			file.Close()
			return nil, nil, fmt.Errorf("read csv header: %w", err)
		}
		return func() (*CustomerRecord, error) {
			row, err := reader.Read()
			if err != nil {
				return nil, err
			}
			return &CustomerRecord{
				ID: row[0], Name: row[1], MaskedPhone: row[2], MaskedEmail: row[3],
				Preferences: row[4], PurchaseHistory: row[5], LoyaltyTier: row[6],
			}, nil
		}, func() { file.Close() }, nil
	case FormatParquet:
		reader := parquet.NewReader(file)
		return func() (*CustomerRecord, error) {
			var rec CustomerRecord
			if err := reader.Read(&rec); err != nil {
				return nil, err
			}
			return &rec, nil
		}, func() { reader.Close(); file.Close() }, nil
	case FormatJSON:
		decoder := json.NewDecoder(file)
		return func() (*CustomerRecord, error) {
			var rec CustomerRecord
			if err := decoder.Decode(&rec); err != nil {
				return nil, err
			}
			return &rec, nil
		}, func() { file.Close() }, nil
	default:
		file.Close()
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func storeReader(filePath string, format FileFormat, logger *zap.Logger) (func() (*StoreRecord, error), func(), error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}

	switch format {
	case FormatCSV:
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = 8
		if _, err := reader.Read(); err != nil { // header
			file.Close()
			return nil, nil, fmt.Errorf("read csv header: %w", err)
		}
		return func() (*StoreRecord, error) {
			row, err := reader.Read()
			if err != nil {
				return nil, err
			}
			lat, latErr := strconv.ParseFloat(row[3], 64)
			lon, lonErr := strconv.ParseFloat(row[4], 64)
			if latErr != nil || lonErr != nil {
				logger.Debug("unparseable store coordinates", zap.String("id", row[0]))
				return &StoreRecord{ID: row[0], Name: row[1], Latitude: 999}, nil
			}
			return &StoreRecord{
				ID: row[0], Name: row[1], StoreType: row[2],
				Latitude: lat, Longitude: lon,
				OpenHours: row[5], Promotions: row[6], Inventory: row[7],
			}, nil
		}, func() { file.Close() }, nil
	case FormatParquet:
		reader := parquet.NewReader(file)
		return func() (*StoreRecord, error) {
			var rec StoreRecord
			if err := reader.Read(&rec); err != nil {
				return nil, err
			}
			return &rec, nil
		}, func() { reader.Close(); file.Close() }, nil
	case FormatJSON:
		decoder := json.NewDecoder(file)
		return func() (*StoreRecord, error) {
			var rec StoreRecord
			if err := decoder.Decode(&rec); err != nil {
				return nil, err
			}
			return &rec, nil
		}, func() { file.Close() }, nil
	default:
		file.Close()
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func writeCustomerCSV(path string, customers []directory.Customer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"id", "name", "masked_phone", "masked_email", "preferences", "purchase_history", "loyalty_tier"}); err != nil {
		return err
	}
	for _, c := range customers {
		row := []string{
			c.ID, c.Name, c.MaskedPhone, c.MaskedEmail,
			marshalJSON(c.Preferences), marshalJSON(c.PurchaseHistory), c.LoyaltyTier,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeStoreCSV(path string, stores []directory.Store) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"id", "name", "store_type", "latitude", "longitude", "open_hours", "promotions", "inventory"}); err != nil {
		return err
	}
	for _, s := range stores {
		row := []string{
			s.ID, s.Name, s.StoreType,
			strconv.FormatFloat(s.Latitude, 'f', 6, 64),
			strconv.FormatFloat(s.Longitude, 'f', 6, 64),
			marshalJSON(s.OpenHours), marshalJSON(s.Promotions), marshalJSON(s.Inventory),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
