// Package personalize aggregates customer, location and environmental
// signals into one bounded context record for prompt construction.
package personalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxPurchaseHistory bounds purchase history in the customer context
const maxPurchaseHistory = 10

// Purchase is one bounded purchase-history entry
type Purchase struct {
	Item     string  `json:"item"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"`
}

// LoyaltyStatus is the derived loyalty position of a customer
type LoyaltyStatus struct {
	Tier             string  `json:"tier"`
	TotalSpend       float64 `json:"total_spend"`
	TotalPoints      int     `json:"total_points"`
	PurchaseCount    int     `json:"purchase_count"`
	NextTier         string  `json:"next_tier,omitempty"`
	SpendToNextTier  float64 `json:"spend_to_next_tier"`
	NextRewardPoints int     `json:"next_reward_points"`
}

// CustomerContext is the derived, cacheable view of one customer. It is
// recomputed from directory records and cached read-through with a short
// TTL, never treated as a source of truth.
type CustomerContext struct {
	CustomerID          string        `json:"customer_id"`
	Name                string        `json:"name"`
	MaskedPhone         string        `json:"masked_phone"`
	MaskedEmail         string        `json:"masked_email"`
	FavoriteCategories  []string      `json:"favorite_categories"`
	DietaryRestrictions []string      `json:"dietary_restrictions"`
	PurchaseHistory     []Purchase    `json:"purchase_history"`
	Loyalty             LoyaltyStatus `json:"loyalty"`
	InteractionCount    int64         `json:"interaction_count"`
	LastInteractionAt   *time.Time    `json:"last_interaction_at,omitempty"`
}

// OpenStatus is the tri-state operational status of a store
type OpenStatus string

const (
	OpenStatusOpen    OpenStatus = "open"
	OpenStatusClosed  OpenStatus = "closed"
	OpenStatusUnknown OpenStatus = "unknown"
)

// StoreCandidate is one ranked store near the caller. Computed per query,
// never persisted.
type StoreCandidate struct {
	StoreID      string         `json:"store_id"`
	Name         string         `json:"name"`
	Location     Coordinates    `json:"location"`
	DistanceKm   float64        `json:"distance_km"`
	OpenStatus   OpenStatus     `json:"open_status"`
	Promotions   []string       `json:"promotions"`
	KeyInventory map[string]int `json:"key_inventory"`
}

// WeatherCategory buckets a temperature reading
type WeatherCategory string

const (
	WeatherCold     WeatherCategory = "cold"
	WeatherPleasant WeatherCategory = "pleasant"
	WeatherHot      WeatherCategory = "hot"
)

// WeatherContext is the derived weather signal for a coordinate
type WeatherContext struct {
	TemperatureC    float64         `json:"temperature_c"`
	Condition       string          `json:"condition"`
	City            string          `json:"city"`
	Category        WeatherCategory `json:"category"`
	Recommendations []string        `json:"recommendations"`
}

// PromptContext is the merged context handed to prompt construction. Its
// shape is stable: fields degraded by partial failure are zero-valued,
// never absent.
type PromptContext struct {
	GeneratedAt time.Time `json:"generated_at"`

	CustomerID          string   `json:"customer_id"`
	CustomerName        string   `json:"customer_name"`
	LoyaltyTier         string   `json:"loyalty_tier"`
	TotalSpend          float64  `json:"total_spend"`
	InteractionCount    int64    `json:"interaction_count"`
	FavoriteCategories  []string `json:"favorite_categories"`
	DietaryRestrictions []string `json:"dietary_restrictions"`

	NearestStores     []StoreCandidate `json:"nearest_stores"`
	StoreName         string           `json:"store_name"`
	DistanceToStoreKm float64          `json:"distance_to_store_km"`
	StoreOpenStatus   OpenStatus       `json:"store_open_status"`
	StorePromotions   []string         `json:"store_promotions"`
	StoreInventory    map[string]int   `json:"store_inventory"`

	Weather                WeatherContext `json:"weather"`
	WeatherRecommendations []string       `json:"weather_recommendations"`

	// Partial marks a degraded build; Degraded names the failed lookups
	Partial  bool     `json:"partial"`
	Degraded []string `json:"degraded,omitempty"`
}

// Flatten renders the context as a flat string map ready for template
// injection; the caller interprets nothing further.
func (p *PromptContext) Flatten() map[string]string {
	flat := map[string]string{
		"current_time":            p.GeneratedAt.Format("2006-01-02 15:04:05"),
		"customer_id":             p.CustomerID,
		"customer_name":           p.CustomerName,
		"loyalty_tier":            p.LoyaltyTier,
		"total_spend":             strconv.FormatFloat(p.TotalSpend, 'f', 2, 64),
		"interaction_count":       strconv.FormatInt(p.InteractionCount, 10),
		"favorite_categories":     strings.Join(p.FavoriteCategories, ", "),
		"dietary_restrictions":    strings.Join(p.DietaryRestrictions, ", "),
		"store_name":              p.StoreName,
		"distance_to_store":       fmt.Sprintf("%.2f km", p.DistanceToStoreKm),
		"store_open_status":       string(p.StoreOpenStatus),
		"store_promotions":        strings.Join(p.StorePromotions, ", "),
		"weather":                 p.weatherSummary(),
		"weather_recommendations": strings.Join(p.WeatherRecommendations, ", "),
	}

	if len(p.StoreInventory) > 0 {
		items := make([]string, 0, len(p.StoreInventory))
		for item, count := range p.StoreInventory {
			items = append(items, fmt.Sprintf("%s: %d", item, count))
		}
		sort.Strings(items)
		flat["store_inventory"] = strings.Join(items, ", ")
	} else {
		flat["store_inventory"] = ""
	}

	return flat
}

func (p *PromptContext) weatherSummary() string {
	if p.Weather.Category == "" {
		return ""
	}
	return fmt.Sprintf("%.0f°C, %s weather in %s",
		p.Weather.TemperatureC, p.Weather.Condition, p.Weather.City)
}
