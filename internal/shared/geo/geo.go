package geo

import "math"

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance in meters between two
// points given in degrees.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineMeters(lat1, lon1, lat2, lon2) / 1000
}

// BoundingBox is an axis-aligned lat/lon rectangle. It does not handle boxes
// crossing the antimeridian.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether the point lies strictly inside the box; points on
// an edge are outside.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat > b.South && lat < b.North && lon > b.West && lon < b.East
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
