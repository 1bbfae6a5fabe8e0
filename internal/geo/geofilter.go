package geo

import "math"

// EarthRadiusMeters is the mean earth radius used by the haversine
// formula.
const EarthRadiusMeters = 6371000

// DefaultSearchRadiusMeters bounds how far from the user a lot may be to
// still count as nearby.
const DefaultSearchRadiusMeters = 1000

// Point is a geographic coordinate in signed decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the point holds plausible decimal-degree values.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Candidate is an entity with an optional coordinate. A nil coordinate
// means the source document was missing or malformed; such candidates
// are never considered nearby.
type Candidate struct {
	ID         string
	Coordinate *Point
}

// Distance returns the great-circle distance between two points in
// meters, computed with the haversine formula.
func Distance(p1, p2 Point) float64 {
	phi1 := p1.Latitude * math.Pi / 180
	phi2 := p2.Latitude * math.Pi / 180
	deltaPhi := (p2.Latitude - p1.Latitude) * math.Pi / 180
	deltaLambda := (p2.Longitude - p1.Longitude) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Filter returns the ids of every candidate within radiusMeters of
// origin. The boundary is inclusive. Candidates without a valid
// coordinate are excluded silently rather than failing the batch.
func Filter(candidates []Candidate, origin Point, radiusMeters float64) []string {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Coordinate == nil || !c.Coordinate.Valid() {
			continue
		}
		if Distance(origin, *c.Coordinate) <= radiusMeters {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
