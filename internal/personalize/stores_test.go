package personalize

import (
	"testing"
	"time"

	"github.com/sunnyshin8/chatguard/internal/directory"
)

func testStores() []directory.Store {
	hours := directory.JSONStringMap{"daily": "07:00-22:00"}
	return []directory.Store{
		{
			ID: "store-far", Name: "QuickMart Far",
			Latitude: 28.70, Longitude: 77.40, // well outside 5km
			OpenHours: hours,
		},
		{
			ID: "store-near", Name: "QuickMart Near",
			Latitude: 28.6150, Longitude: 77.2100,
			OpenHours:  hours,
			Promotions: directory.JSONList{"10% off dairy"},
			Inventory:  directory.JSONMap{"milk": float64(40), "bread": float64(12), "soap": float64(99)},
		},
		{
			ID: "store-mid", Name: "QuickMart Mid",
			Latitude: 28.6350, Longitude: 77.2250,
			OpenHours: hours,
		},
		{
			ID: "store-bad", Name: "Broken Row",
			Latitude: 999, Longitude: 999,
		},
	}
}

func TestRankStores(t *testing.T) {
	from := Coordinates{28.6139, 77.2090}
	noon := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("FilterSortTruncate", func(t *testing.T) {
		ranked := RankStores(testStores(), from, 5.0, 5, noon)
		if len(ranked) != 2 {
			t.Fatalf("Expected 2 stores within 5km, got %d: %+v", len(ranked), ranked)
		}
		if ranked[0].StoreID != "store-near" || ranked[1].StoreID != "store-mid" {
			t.Errorf("Stores not sorted by distance: %+v", ranked)
		}
		if ranked[0].DistanceKm >= ranked[1].DistanceKm {
			t.Errorf("Distances not ascending: %f then %f", ranked[0].DistanceKm, ranked[1].DistanceKm)
		}
	})

	t.Run("LimitApplied", func(t *testing.T) {
		ranked := RankStores(testStores(), from, 5.0, 1, noon)
		if len(ranked) != 1 || ranked[0].StoreID != "store-near" {
			t.Errorf("Expected only nearest store, got %+v", ranked)
		}
	})

	t.Run("InvalidCoordinatesSkipped", func(t *testing.T) {
		ranked := RankStores(testStores(), from, 1e6, 10, noon)
		for _, c := range ranked {
			if c.StoreID == "store-bad" {
				t.Error("Store with invalid coordinates was ranked")
			}
		}
	})

	t.Run("OpenStatusEvaluated", func(t *testing.T) {
		ranked := RankStores(testStores(), from, 5.0, 5, noon)
		if ranked[0].OpenStatus != OpenStatusOpen {
			t.Errorf("Expected open at noon, got %s", ranked[0].OpenStatus)
		}

		night := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
		ranked = RankStores(testStores(), from, 5.0, 5, night)
		if ranked[0].OpenStatus != OpenStatusClosed {
			t.Errorf("Expected closed at night, got %s", ranked[0].OpenStatus)
		}
	})

	t.Run("MissingHoursIsUnknown", func(t *testing.T) {
		stores := []directory.Store{{
			ID: "s", Name: "No Hours", Latitude: 28.6140, Longitude: 77.2091,
		}}
		ranked := RankStores(stores, from, 5.0, 5, noon)
		if len(ranked) != 1 || ranked[0].OpenStatus != OpenStatusUnknown {
			t.Errorf("Expected unknown status without hours data, got %+v", ranked)
		}
	})

	t.Run("KeyInventoryOnly", func(t *testing.T) {
		ranked := RankStores(testStores(), from, 5.0, 5, noon)
		inv := ranked[0].KeyInventory
		if inv["milk"] != 40 || inv["bread"] != 12 {
			t.Errorf("Tracked SKUs missing: %+v", inv)
		}
		if _, ok := inv["soap"]; ok {
			t.Error("Untracked SKU leaked into key inventory")
		}
	})
}
