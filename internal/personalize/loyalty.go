package personalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sunnyshin8/chatguard/internal/config"
)

// pointsPerTier maps a tier name to the points needed for its next reward
var pointsPerTier = map[string]int{
	"bronze":   125,
	"silver":   125,
	"gold":     100,
	"platinum": 75,
}

// Tiers resolves loyalty tiers against cumulative spend. Bands are
// ordered ascending with inclusive lower bounds; config validation
// guarantees the first band starts at zero.
type Tiers struct {
	bands []config.TierBand
}

// NewTiers copies and sorts the configured bands
func NewTiers(bands []config.TierBand) *Tiers {
	sorted := make([]config.TierBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinSpend < sorted[j].MinSpend })
	return &Tiers{bands: sorted}
}

// TierFor returns the highest band whose minimum spend does not exceed
// the given cumulative spend. Band boundaries are inclusive: spend equal
// to a band's minimum lands in that band.
func (t *Tiers) TierFor(spend float64) string {
	tier := t.bands[0].Name
	for _, band := range t.bands {
		if spend >= band.MinSpend {
			tier = band.Name
		}
	}
	return tier
}

// NextTier returns the band above the given one, or "" for the top band
func (t *Tiers) NextTier(tier string) (string, float64) {
	for i, band := range t.bands {
		if band.Name == tier && i+1 < len(t.bands) {
			return t.bands[i+1].Name, t.bands[i+1].MinSpend
		}
	}
	return "", 0
}

// Status derives the full loyalty position from purchase totals
func (t *Tiers) Status(totalSpend float64, totalPoints, purchaseCount int) LoyaltyStatus {
	tier := t.TierFor(totalSpend)
	status := LoyaltyStatus{
		Tier:          tier,
		TotalSpend:    totalSpend,
		TotalPoints:   totalPoints,
		PurchaseCount: purchaseCount,
	}

	if next, minSpend := t.NextTier(tier); next != "" {
		status.NextTier = next
		status.SpendToNextTier = minSpend - totalSpend
	}

	needed := pointsPerTier[strings.ToLower(tier)]
	if needed == 0 {
		needed = 125
	}
	if rem := totalPoints % needed; rem != 0 {
		status.NextRewardPoints = needed - rem
	} else if totalPoints == 0 {
		status.NextRewardPoints = needed
	}

	return status
}

// Describe renders a one-line loyalty summary for prompt text
func (s LoyaltyStatus) Describe() string {
	if s.NextTier == "" {
		return fmt.Sprintf("%s member (%d points)", s.Tier, s.TotalPoints)
	}
	return fmt.Sprintf("%s member (%d points), %.0f spend from %s",
		s.Tier, s.TotalPoints, s.SpendToNextTier, s.NextTier)
}
