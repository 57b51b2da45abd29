package personalize

import (
	"sort"
	"strings"
	"time"

	"github.com/sunnyshin8/chatguard/internal/directory"
)

// keyInventoryItems are the SKUs surfaced in ranked store candidates
var keyInventoryItems = []string{"milk", "bread", "eggs", "rice", "atta"}

// RankStores filters stores to those within radiusKm of the caller,
// orders them nearest-first and truncates to limit. Stores with invalid
// coordinates are skipped rather than failing the whole ranking.
func RankStores(stores []directory.Store, from Coordinates, radiusKm float64, limit int, now time.Time) []StoreCandidate {
	candidates := make([]StoreCandidate, 0, len(stores))
	for _, s := range stores {
		loc := Coordinates{Latitude: s.Latitude, Longitude: s.Longitude}
		if loc.Validate() != nil {
			continue
		}
		dist := HaversineKm(from, loc)
		if dist > radiusKm {
			continue
		}
		candidates = append(candidates, StoreCandidate{
			StoreID:      s.ID,
			Name:         s.Name,
			Location:     loc,
			DistanceKm:   dist,
			OpenStatus:   EvaluateOpenStatus(hoursForDay(s.OpenHours, now), now),
			Promotions:   promotionLines(s.Promotions),
			KeyInventory: keyInventory(s.Inventory),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// hoursForDay picks the schedule entry for now's weekday, falling back
// to the "daily" key for stores with one schedule for every day.
func hoursForDay(hours directory.JSONStringMap, now time.Time) string {
	if len(hours) == 0 {
		return ""
	}
	day := strings.ToLower(now.Weekday().String())
	if h, ok := hours[day]; ok {
		return h
	}
	if h, ok := hours[day[:3]]; ok {
		return h
	}
	return hours["daily"]
}

func promotionLines(promos directory.JSONList) []string {
	lines := make([]string, 0, len(promos))
	for _, p := range promos {
		switch v := p.(type) {
		case string:
			lines = append(lines, v)
		case map[string]interface{}:
			if title, ok := v["title"].(string); ok {
				lines = append(lines, title)
			}
		}
	}
	return lines
}

// keyInventory extracts stock counts for the tracked SKUs only
func keyInventory(inv directory.JSONMap) map[string]int {
	out := make(map[string]int, len(keyInventoryItems))
	for _, item := range keyInventoryItems {
		v, ok := inv[item]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			out[item] = int(n)
		case int:
			out[item] = n
		}
	}
	return out
}
