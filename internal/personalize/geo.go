package personalize

import (
	"errors"
	"math"
)

// ErrInvalidCoordinates is returned for out-of-range latitude or longitude
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// earthRadiusKm is the mean Earth radius used by the Haversine distance
const earthRadiusKm = 6371.0

// Coordinates is a WGS84 point
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside [-90,90] latitude or
// [-180,180] longitude.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return ErrInvalidCoordinates
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// HaversineKm computes the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
