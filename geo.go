package photopipe

import "math"

const earthRadiusM = 6371000.0

// Distance returns the great-circle distance in meters between two
// WGS 84 coordinates, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// Bounds is a geographic bounding box.
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoundingBox returns the bounding box of all venues, expanded on every side
// by padding degrees so POIs just past the outermost venue still qualify.
// Returns the zero Bounds when venues is empty.
func BoundingBox(venues []Venue, padding float64) Bounds {
	if len(venues) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: venues[0].Lat, MaxLat: venues[0].Lat,
		MinLon: venues[0].Lon, MaxLon: venues[0].Lon,
	}
	for _, v := range venues[1:] {
		b.MinLat = math.Min(b.MinLat, v.Lat)
		b.MaxLat = math.Max(b.MaxLat, v.Lat)
		b.MinLon = math.Min(b.MinLon, v.Lon)
		b.MaxLon = math.Max(b.MaxLon, v.Lon)
	}
	b.MinLat -= padding
	b.MaxLat += padding
	b.MinLon -= padding
	b.MaxLon += padding
	return b
}
