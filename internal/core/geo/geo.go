// Package geo holds the great-circle helpers used by every location check.
package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h slightly outside [0,1] for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// InCircle reports whether p lies within radius meters of center. The boundary counts as inside.
func InCircle(p, center Point, radius float64) bool {
	return Distance(p, center) <= radius
}

// Valid reports whether lat/lng are inside WGS84 bounds.
func Valid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Offset moves p by the given number of meters north and east along the sphere.
func Offset(p Point, north, east float64) Point {
	lat := p.Lat + toDegrees(north/EarthRadiusMeters)
	lng := p.Lng
	if east != 0 {
		lng += toDegrees(east / (EarthRadiusMeters * math.Cos(toRadians(p.Lat))))
	}
	return Point{Lat: lat, Lng: lng}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
