package personalize

import (
	"context"

	"github.com/sunnyshin8/chatguard/internal/config"
)

// WeatherReading is a raw observation from a provider
type WeatherReading struct {
	TemperatureC float64
	Condition    string
	City         string
}

// WeatherProvider resolves a weather reading for a coordinate
type WeatherProvider interface {
	Current(ctx context.Context, loc Coordinates) (WeatherReading, error)
}

// weatherRecommendations maps each category to suggestion snippets
var weatherRecommendations = map[WeatherCategory][]string{
	WeatherCold:     {"hot beverages", "soups", "warm comfort food"},
	WeatherHot:      {"cold drinks", "ice cream", "fresh salads"},
	WeatherPleasant: {"seasonal specials", "outdoor seating"},
}

// Categorize buckets a temperature using the configured thresholds:
// strictly below the cold bound is cold, strictly above the hot bound is
// hot, everything else pleasant.
func Categorize(tempC float64, cfg config.WeatherConfig) WeatherCategory {
	switch {
	case tempC < cfg.ColdBelowC:
		return WeatherCold
	case tempC > cfg.HotAboveC:
		return WeatherHot
	default:
		return WeatherPleasant
	}
}

// BuildWeatherContext derives the full weather signal from a reading
func BuildWeatherContext(r WeatherReading, cfg config.WeatherConfig) WeatherContext {
	cat := Categorize(r.TemperatureC, cfg)
	recs := weatherRecommendations[cat]
	out := make([]string, len(recs))
	copy(out, recs)
	return WeatherContext{
		TemperatureC:    r.TemperatureC,
		Condition:       r.Condition,
		City:            r.City,
		Category:        cat,
		Recommendations: out,
	}
}

// staticCity is one entry of the built-in provider table
type staticCity struct {
	name   string
	loc    Coordinates
	tempC  float64
	skies  string
	radius float64
}

// StaticProvider serves canned readings for a fixed set of cities,
// picking the nearest within each city's radius. Intended for
// development and tests; production deployments plug their own provider.
type StaticProvider struct {
	cities []staticCity
}

// NewStaticProvider returns a provider covering major Indian metros
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{cities: []staticCity{
		{"Delhi", Coordinates{28.6139, 77.2090}, 18, "clear", 100},
		{"Mumbai", Coordinates{19.0760, 72.8777}, 28, "humid", 100},
		{"Bangalore", Coordinates{12.9716, 77.5946}, 22, "pleasant", 100},
		{"Hyderabad", Coordinates{17.3850, 78.4867}, 25, "warm", 100},
		{"Pune", Coordinates{18.5204, 73.8567}, 24, "mild", 100},
	}}
}

// Current returns the reading of the nearest covered city. Locations
// outside every city's radius fall back to the nearest city anyway so
// the aggregator always has a signal.
func (p *StaticProvider) Current(_ context.Context, loc Coordinates) (WeatherReading, error) {
	if err := loc.Validate(); err != nil {
		return WeatherReading{}, err
	}
	best := p.cities[0]
	bestDist := HaversineKm(loc, best.loc)
	for _, c := range p.cities[1:] {
		if d := HaversineKm(loc, c.loc); d < bestDist {
			best, bestDist = c, d
		}
	}
	return WeatherReading{TemperatureC: best.tempC, Condition: best.skies, City: best.name}, nil
}
