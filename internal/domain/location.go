package domain

import "math"

const (
	DefaultEarthRadiusKm = 6371.0
	DefaultRadiusKm      = 1.0
)

// Location is a WGS84 coordinate pair in degrees. Values are not range
// checked; out-of-range input still yields a finite distance.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// reduce folds an angle in degrees into [-180, 180] so the radian
// conversion stays finite for any float input.
func reduce(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	return math.Remainder(deg, 360)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance between a and b on a sphere
// of radius earthRadiusKm, in kilometres.
func Haversine(a, b Location, earthRadiusKm float64) float64 {
	if a == b {
		return 0
	}
	aLat, aLon := reduce(a.Latitude), reduce(a.Longitude)
	bLat, bLon := reduce(b.Latitude), reduce(b.Longitude)

	sinLat := math.Sin(toRad(bLat-aLat) / 2)
	sinLon := math.Sin(toRad(bLon-aLon) / 2)
	h := sinLat*sinLat + sinLon*sinLon*(math.Cos(toRad(aLat))*math.Cos(toRad(bLat)))
	// rounding can push h a hair outside [0, 1] for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
