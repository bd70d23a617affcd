package domain

import "github.com/golang/geo/s2"

// Coordinate is a point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within [-90,90] x [-180,180].
// NaN and infinities are rejected.
func (c Coordinate) Valid() bool {
	return c.LatLng().IsValid()
}

func (c Coordinate) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lng)
}

// LocationSource tells which resolution stage produced a coordinate.
type LocationSource string

const (
	SourceGazetteer LocationSource = "gazetteer"
	SourceVariant   LocationSource = "variant"
	SourceRule      LocationSource = "rule"
	SourceFuzzy     LocationSource = "fuzzy"
	SourceGeocoder  LocationSource = "geocoder"
)

func (s LocationSource) String() string {
	return string(s)
}

// Location is a resolved place: the caller's original text plus where it sits.
type Location struct {
	Name string `json:"name"`
	Coordinate
	Source LocationSource `json:"source"`
}

// Bounds is a lat/lng rectangle.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}
