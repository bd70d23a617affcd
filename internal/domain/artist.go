package domain

import "sort"

// Artist is one entry of the upstream catalog. Genre is assigned locally.
type Artist struct {
	ID           int      `json:"id"`
	Image        string   `json:"image"`
	Name         string   `json:"name"`
	Members      []string `json:"members"`
	CreationDate int      `json:"creationDate"`
	FirstAlbum   string   `json:"firstAlbum"`
	Locations    string   `json:"locations,omitempty"`
	ConcertDates string   `json:"concertDates,omitempty"`
	Relations    string   `json:"relations,omitempty"`
	Genre        string   `json:"genre,omitempty"`
}

// ConcertInfo groups the dates an artist played at one place.
type ConcertInfo struct {
	Location string   `json:"location"`
	Dates    []string `json:"dates"`
}

type ArtistDetail struct {
	Artist
	ConcertInfo []ConcertInfo `json:"concertInfo"`
}

// LocationIndex is one row of the upstream /locations index.
type LocationIndex struct {
	ID        int      `json:"id"`
	Locations []string `json:"locations"`
	Dates     string   `json:"dates,omitempty"`
}

type Relation struct {
	ID             int                 `json:"id"`
	DatesLocations map[string][]string `json:"datesLocations"`
}

// ConcertInfos flattens the relation map into a list ordered by location so the
// output is stable across calls.
func (r *Relation) ConcertInfos() []ConcertInfo {
	if r == nil || len(r.DatesLocations) == 0 {
		return []ConcertInfo{}
	}

	places := make([]string, 0, len(r.DatesLocations))
	for place := range r.DatesLocations {
		places = append(places, place)
	}
	sort.Strings(places)

	out := make([]ConcertInfo, 0, len(places))
	for _, place := range places {
		dates := r.DatesLocations[place]
		if dates == nil {
			dates = []string{}
		}
		out = append(out, ConcertInfo{Location: place, Dates: dates})
	}
	return out
}

// AlbumImage is one carousel picture from the albums file.
type AlbumImage struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

type ExternalImage struct {
	URL string `json:"url"`
}

type ExternalEvent struct {
	Date  string `json:"date,omitempty"`
	Venue string `json:"venue,omitempty"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
}

// ExternalArtist is the shape returned by the external search, whether the match
// came from the local catalog or from Discogs.
type ExternalArtist struct {
	Name   string          `json:"name"`
	URL    string          `json:"url,omitempty"`
	Source string          `json:"source"`
	Images []ExternalImage `json:"images,omitempty"`
	Events []ExternalEvent `json:"events,omitempty"`
}

// WikiSummary is the lead paragraph of an encyclopedia article.
type WikiSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}
