package personalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sunnyshin8/chatguard/internal/config"
	"github.com/sunnyshin8/chatguard/internal/directory"
	"github.com/sunnyshin8/chatguard/internal/vault"
)

// customerCachePrefix namespaces cached customer contexts in the shared
// TTL store, away from vault token keys.
const customerCachePrefix = "ctx:customer:"

// Aggregator merges customer, store and weather signals into one
// PromptContext. Sub-lookups run concurrently, each bounded by the
// configured step timeout; a failed lookup degrades its section instead
// of failing the whole build.
type Aggregator struct {
	customers directory.CustomerDirectory
	stores    directory.StoreDirectory
	weather   WeatherProvider
	cache     vault.TTLStore
	tiers     *Tiers
	cfg       config.ContextConfig
	logger    *zap.Logger
}

// NewAggregator wires an aggregator from its collaborators. cache may be
// nil, in which case every build recomputes the customer context.
func NewAggregator(customers directory.CustomerDirectory, stores directory.StoreDirectory,
	weather WeatherProvider, cache vault.TTLStore, cfg config.ContextConfig, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		customers: customers,
		stores:    stores,
		weather:   weather,
		cache:     cache,
		tiers:     NewTiers(cfg.Loyalty.Bands),
		cfg:       cfg,
		logger:    logger,
	}
}

// Build assembles the prompt context for one customer at one location.
// A non-empty storeID pins the named store as the selected store instead
// of the nearest ranked one. Build returns an error only for invalid
// input; backend failures produce a partial context with the failed
// sections named in Degraded.
func (a *Aggregator) Build(ctx context.Context, customerID string, loc Coordinates, storeID string) (*PromptContext, error) {
	if customerID == "" {
		return nil, errors.New("customer id is required")
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	out := &PromptContext{
		GeneratedAt: time.Now().UTC(),
		CustomerID:  customerID,
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		degraded []string
	)
	fail := func(section string, err error) {
		a.logger.Warn("context lookup degraded",
			zap.String("section", section), zap.Error(err))
		mu.Lock()
		degraded = append(degraded, section)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		stepCtx, cancel := context.WithTimeout(ctx, a.cfg.StepTimeout)
		defer cancel()
		cc, err := a.customerContext(stepCtx, customerID)
		if err != nil {
			fail("customer", err)
			return
		}
		mu.Lock()
		out.CustomerName = cc.Name
		out.LoyaltyTier = cc.Loyalty.Tier
		out.TotalSpend = cc.Loyalty.TotalSpend
		out.InteractionCount = cc.InteractionCount
		out.FavoriteCategories = cc.FavoriteCategories
		out.DietaryRestrictions = cc.DietaryRestrictions
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		stepCtx, cancel := context.WithTimeout(ctx, a.cfg.StepTimeout)
		defer cancel()
		stores, err := a.stores.ListStores(stepCtx)
		if err != nil {
			fail("stores", err)
			return
		}
		ranked := RankStores(stores, loc, a.cfg.StoreRadiusKm, a.cfg.StoreLimit, time.Now())
		selected := selectStore(ranked, stores, loc, storeID)
		mu.Lock()
		out.NearestStores = ranked
		if selected != nil {
			out.StoreName = selected.Name
			out.DistanceToStoreKm = selected.DistanceKm
			out.StoreOpenStatus = selected.OpenStatus
			out.StorePromotions = selected.Promotions
			out.StoreInventory = selected.KeyInventory
		}
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		stepCtx, cancel := context.WithTimeout(ctx, a.cfg.StepTimeout)
		defer cancel()
		reading, err := a.weather.Current(stepCtx, loc)
		if err != nil {
			fail("weather", err)
			return
		}
		wc := BuildWeatherContext(reading, a.cfg.Weather)
		mu.Lock()
		out.Weather = wc
		out.WeatherRecommendations = wc.Recommendations
		mu.Unlock()
	}()
	wg.Wait()

	if len(degraded) > 0 {
		sort.Strings(degraded)
		out.Partial = true
		out.Degraded = degraded
	}
	return out, nil
}

// selectStore resolves the store section: an explicit storeID pins that
// store regardless of radius, otherwise the nearest ranked candidate is
// used. An unknown storeID degrades to the nearest candidate.
func selectStore(ranked []StoreCandidate, all []directory.Store, from Coordinates, storeID string) *StoreCandidate {
	if storeID != "" {
		for i := range ranked {
			if ranked[i].StoreID == storeID {
				return &ranked[i]
			}
		}
		for _, s := range all {
			if s.ID != storeID {
				continue
			}
			// pinned store outside the ranking radius; rank it alone
			pinned := RankStores([]directory.Store{s}, from, 1e9, 1, time.Now())
			if len(pinned) == 1 {
				return &pinned[0]
			}
		}
	}
	if len(ranked) > 0 {
		return &ranked[0]
	}
	return nil
}

// customerContext resolves the derived customer view, read-through
// cached under the configured TTL.
func (a *Aggregator) customerContext(ctx context.Context, customerID string) (*CustomerContext, error) {
	cacheKey := customerCachePrefix + customerID
	if a.cache != nil {
		if raw, err := a.cache.Get(ctx, cacheKey); err == nil {
			var cc CustomerContext
			if jsonErr := json.Unmarshal([]byte(raw), &cc); jsonErr == nil {
				return &cc, nil
			}
			// corrupted entry, fall through and recompute
			_ = a.cache.Delete(ctx, cacheKey)
		}
	}

	customer, err := a.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	stats, err := a.customers.GetInteractionStats(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("interaction stats: %w", err)
	}

	cc := a.deriveCustomerContext(customer, stats)

	if a.cache != nil {
		if payload, jsonErr := json.Marshal(cc); jsonErr == nil {
			if err := a.cache.Put(ctx, cacheKey, string(payload), a.cfg.CustomerCacheTTL); err != nil {
				a.logger.Debug("customer context cache write failed",
					zap.String("customer_id", customerID), zap.Error(err))
			}
		}
	}
	return cc, nil
}

func (a *Aggregator) deriveCustomerContext(customer *directory.Customer, stats *directory.InteractionStats) *CustomerContext {
	purchases := parsePurchases(customer.PurchaseHistory)

	var totalSpend float64
	for _, p := range purchases {
		totalSpend += p.Amount
	}
	// one point per ten currency units spent
	totalPoints := int(totalSpend / 10)

	recent := purchases
	if len(recent) > maxPurchaseHistory {
		recent = recent[len(recent)-maxPurchaseHistory:]
	}

	cc := &CustomerContext{
		CustomerID:          customer.ID,
		Name:                customer.Name,
		MaskedPhone:         customer.MaskedPhone,
		MaskedEmail:         customer.MaskedEmail,
		FavoriteCategories:  stringList(customer.Preferences["favorite_categories"]),
		DietaryRestrictions: stringList(customer.Preferences["dietary_restrictions"]),
		PurchaseHistory:     recent,
		Loyalty:             a.tiers.Status(totalSpend, totalPoints, len(purchases)),
		InteractionCount:    stats.Count,
	}
	if stats.Last.Valid {
		last := stats.Last.Time
		cc.LastInteractionAt = &last
	}
	return cc
}

func parsePurchases(history directory.JSONList) []Purchase {
	purchases := make([]Purchase, 0, len(history))
	for _, entry := range history {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		p := Purchase{}
		if v, ok := m["item"].(string); ok {
			p.Item = v
		}
		if v, ok := m["category"].(string); ok {
			p.Category = v
		}
		if v, ok := m["amount"].(float64); ok {
			p.Amount = v
		}
		if v, ok := m["date"].(string); ok {
			p.Date = v
		}
		purchases = append(purchases, p)
	}
	return purchases
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
