// Package filter narrows the artist list by the search form criteria.
package filter

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	"github.com/kapu/spotmyartist/pkg/errors"
	"github.com/samber/lo"
)

// Criteria holds the active filters. Zero values disable a filter.
//
// CreationYear matches the creation year exactly. CreationFrom and CreationTo
// bound it inclusively and apply on top of CreationYear when both are set.
type Criteria struct {
	Query          string `json:"query,omitempty"`
	Genre          string `json:"genre,omitempty"`
	City           string `json:"city,omitempty"`
	Members        int    `json:"members,omitempty"`
	CreationYear   int    `json:"creationYear,omitempty"`
	CreationFrom   int    `json:"creationFrom,omitempty"`
	CreationTo     int    `json:"creationTo,omitempty"`
	FirstAlbumYear int    `json:"firstAlbumYear,omitempty"`
}

// IsZero reports whether no filter is active.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// NeedsLocations reports whether Apply needs the artist location index.
func (c Criteria) NeedsLocations() bool {
	return strings.TrimSpace(c.City) != ""
}

// ParseCriteria reads criteria from query parameters. Blank values are ignored;
// malformed numbers are rejected.
func ParseCriteria(values url.Values) (Criteria, error) {
	c := Criteria{
		Query: strings.TrimSpace(values.Get("q")),
		Genre: strings.TrimSpace(values.Get("genre")),
		City:  strings.TrimSpace(values.Get("city")),
	}

	ints := []struct {
		field string
		dest  *int
	}{
		{"members", &c.Members},
		{"year", &c.CreationYear},
		{"yearFrom", &c.CreationFrom},
		{"yearTo", &c.CreationTo},
		{"albumYear", &c.FirstAlbumYear},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(values.Get(f.field))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Criteria{}, errors.NewValidationError("must be a non-negative integer", f.field, raw)
		}
		*f.dest = n
	}

	if c.CreationFrom > 0 && c.CreationTo > 0 && c.CreationFrom > c.CreationTo {
		return Criteria{}, errors.NewValidationError("yearFrom must not be after yearTo", "yearFrom", c.CreationFrom)
	}
	return c, nil
}

// Apply returns the artists matching every active criterion, in input order.
// locations maps artist id to concert places and is only read for the city
// filter; artists missing from it never match a city.
func Apply(artists []domain.Artist, c Criteria, locations map[int][]string) []domain.Artist {
	query := strings.ToLower(c.Query)
	genre := strings.ToLower(c.Genre)
	city := strings.ToLower(strings.TrimSpace(c.City))

	return lo.Filter(artists, func(a domain.Artist, _ int) bool {
		if query != "" && !strings.Contains(strings.ToLower(a.Name), query) {
			return false
		}
		if c.CreationYear > 0 && a.CreationDate != c.CreationYear {
			return false
		}
		if c.CreationFrom > 0 && a.CreationDate < c.CreationFrom {
			return false
		}
		if c.CreationTo > 0 && a.CreationDate > c.CreationTo {
			return false
		}
		if c.FirstAlbumYear > 0 && util.YearOf(a.FirstAlbum) != c.FirstAlbumYear {
			return false
		}
		if c.Members > 0 && len(a.Members) != c.Members {
			return false
		}
		if genre != "" && !strings.Contains(strings.ToLower(a.Genre), genre) {
			return false
		}
		if city != "" && !playedIn(locations[a.ID], city) {
			return false
		}
		return true
	})
}

// playedIn matches the city against the display form of each place, or against
// its part before the first comma.
func playedIn(places []string, city string) bool {
	return lo.SomeBy(places, func(place string) bool {
		formatted := strings.ToLower(util.FormatCityName(place))
		cityPart, _, _ := strings.Cut(formatted, ",")
		return strings.Contains(formatted, city) || strings.Contains(cityPart, city)
	})
}
