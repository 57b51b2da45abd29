package seed

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/sunnyshin8/chatguard/internal/directory"
)

// Fixture data for the generator. Values are deliberately plain so
// generated rows read like real directory entries in development.
var (
	fixtureFirstNames = []string{
		"Rajesh", "Priya", "Amit", "Sneha", "Vikram", "Ananya",
		"Arjun", "Kavya", "Rahul", "Meera", "Suresh", "Divya",
	}
	fixtureLastNames = []string{
		"Kumar", "Sharma", "Patel", "Reddy", "Singh", "Iyer", "Gupta", "Nair",
	}
	fixtureCategories = []string{
		"groceries", "snacks", "beverages", "dairy", "bakery",
		"personal care", "household", "ready to eat",
	}
	fixtureDietary = []string{"vegetarian", "vegan", "gluten-free", "no restrictions"}
	fixtureItems   = []string{
		"milk", "bread", "eggs", "rice", "atta", "paneer",
		"biscuits", "tea", "coffee", "juice",
	}

	fixtureCities = []struct {
		name string
		lat  float64
		lon  float64
	}{
		{"Delhi", 28.6139, 77.2090},
		{"Mumbai", 19.0760, 72.8777},
		{"Bangalore", 12.9716, 77.5946},
		{"Hyderabad", 17.3850, 78.4867},
		{"Pune", 18.5204, 73.8567},
	}
)

// Generator produces deterministic directory fixtures. The same seed
// always yields the same rows, which keeps development databases and
// test expectations stable.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Customers generates n customer rows
func (g *Generator) Customers(n int) []directory.Customer {
	now := time.Now().UTC()
	customers := make([]directory.Customer, 0, n)
	for i := 0; i < n; i++ {
		first := fixtureFirstNames[g.rng.Intn(len(fixtureFirstNames))]
		last := fixtureLastNames[g.rng.Intn(len(fixtureLastNames))]

		history := g.purchaseHistory(2 + g.rng.Intn(10))
		customers = append(customers, directory.Customer{
			ID:          fmt.Sprintf("cust-%04d", i+1),
			Name:        first + " " + last,
			MaskedPhone: fmt.Sprintf("+91-****-****-%04d", g.rng.Intn(10000)),
			MaskedEmail: fmt.Sprintf("%c****@example.com", first[0]+'a'-'A'),
			Preferences: directory.JSONMap{
				"favorite_categories":  g.pick(fixtureCategories, 2+g.rng.Intn(2)),
				"dietary_restrictions": g.pick(fixtureDietary, 1),
			},
			PurchaseHistory: history,
			LoyaltyTier:     "", // derived at read time, not stored
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return customers
}

// Stores generates storesPerCity rows around each fixture city
func (g *Generator) Stores(storesPerCity int) []directory.Store {
	now := time.Now().UTC()
	stores := make([]directory.Store, 0, storesPerCity*len(fixtureCities))
	for _, city := range fixtureCities {
		for i := 0; i < storesPerCity; i++ {
			// jitter within roughly 3km of the city center
			lat := city.lat + (g.rng.Float64()-0.5)*0.05
			lon := city.lon + (g.rng.Float64()-0.5)*0.05

			inventory := directory.JSONMap{}
			for _, item := range fixtureItems {
				if g.rng.Float64() < 0.7 {
					inventory[item] = float64(g.rng.Intn(200))
				}
			}

			stores = append(stores, directory.Store{
				ID:        fmt.Sprintf("store-%s-%02d", cityKey(city.name), i+1),
				Name:      fmt.Sprintf("QuickMart %s %d", city.name, i+1),
				StoreType: "convenience",
				Latitude:  lat,
				Longitude: lon,
				OpenHours: directory.JSONStringMap{"daily": "07:00-22:00"},
				Promotions: directory.JSONList{
					fmt.Sprintf("%d%% off %s", 5+g.rng.Intn(4)*5,
						fixtureCategories[g.rng.Intn(len(fixtureCategories))]),
				},
				Inventory: inventory,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}
	return stores
}

func (g *Generator) purchaseHistory(n int) directory.JSONList {
	history := make(directory.JSONList, 0, n)
	day := time.Now().UTC().AddDate(0, 0, -n*7)
	for i := 0; i < n; i++ {
		item := fixtureItems[g.rng.Intn(len(fixtureItems))]
		history = append(history, map[string]interface{}{
			"item":     item,
			"category": fixtureCategories[g.rng.Intn(len(fixtureCategories))],
			"amount":   float64(50 + g.rng.Intn(2000)),
			"date":     day.AddDate(0, 0, i*7).Format("2006-01-02"),
		})
	}
	return history
}

func (g *Generator) pick(pool []string, n int) []interface{} {
	idx := g.rng.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]interface{}, 0, n)
	for _, i := range idx[:n] {
		out = append(out, pool[i])
	}
	return out
}

func cityKey(name string) string {
	b := []byte(name)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// marshalJSON renders a fixture value for CSV/JSON dataset export
func marshalJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
