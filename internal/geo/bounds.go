package geo

import (
	"github.com/golang/geo/s2"
	"github.com/kapu/spotmyartist/internal/domain"
)

// BoundsOf returns the smallest lat/lng rectangle holding every coordinate, and
// its center. When the rectangle crosses the antimeridian West is greater than East.
// The boolean is false for an empty input.
func BoundsOf(coords []domain.Coordinate) (domain.Bounds, domain.Coordinate, bool) {
	if len(coords) == 0 {
		return domain.Bounds{}, domain.Coordinate{}, false
	}

	rect := s2.EmptyRect()
	for _, c := range coords {
		rect = rect.AddPoint(c.LatLng())
	}

	lo, hi, center := rect.Lo(), rect.Hi(), rect.Center()
	return domain.Bounds{
			South: lo.Lat.Degrees(),
			West:  lo.Lng.Degrees(),
			North: hi.Lat.Degrees(),
			East:  hi.Lng.Degrees(),
		}, domain.Coordinate{
			Lat: center.Lat.Degrees(),
			Lng: center.Lng.Degrees(),
		}, true
}
