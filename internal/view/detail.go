package view

import (
	"sort"
	"strings"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
)

// ConcertRow is one date at one place.
type ConcertRow struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	RawDate  string `json:"rawDate"`
	Location string `json:"location"`
	City     string `json:"city"`
	Country  string `json:"country,omitempty"`
}

type Detail struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Image        string       `json:"image"`
	Genre        string       `json:"genre,omitempty"`
	Members      []string     `json:"members"`
	MembersLabel string       `json:"membersLabel,omitempty"`
	CreatedLabel string       `json:"createdLabel,omitempty"`
	FirstAlbum   string       `json:"firstAlbum,omitempty"`
	Concerts     []ConcertRow `json:"concerts"`
	Places       []string     `json:"places"`
}

// ArtistDetail builds the detail dialog model. Concert rows follow the concert
// list order and, within a place, date order.
func ArtistDetail(d domain.ArtistDetail) Detail {
	members := d.Members
	if members == nil {
		members = []string{}
	}

	view := Detail{
		ID:           d.ID,
		Name:         displayName(d.Name),
		Image:        imageOrDefault(d.Image),
		Genre:        d.Genre,
		Members:      members,
		MembersLabel: membersLabel(len(members)),
		CreatedLabel: createdLabel(d.CreationDate),
		FirstAlbum:   formatOptionalDate(d.FirstAlbum),
		Concerts:     []ConcertRow{},
		Places:       make([]string, 0, len(d.ConcertInfo)),
	}

	for _, ci := range d.ConcertInfo {
		city, country := util.SplitPlace(ci.Location)
		view.Places = append(view.Places, util.FormatCityName(ci.Location))

		dates := append([]string(nil), ci.Dates...)
		sort.SliceStable(dates, func(i, j int) bool {
			ti, okI := util.ParseConcertDate(dates[i])
			tj, okJ := util.ParseConcertDate(dates[j])
			if okI && okJ {
				return ti.Before(tj)
			}
			return okI && !okJ
		})

		for _, raw := range dates {
			view.Concerts = append(view.Concerts, ConcertRow{
				ID:       concertID(raw, ci.Location),
				Date:     util.FormatConcertDate(raw),
				RawDate:  raw,
				Location: ci.Location,
				City:     city,
				Country:  country,
			})
		}
	}
	return view
}

func concertID(date, location string) string {
	dash := func(s string) string { return strings.Join(strings.Fields(s), "-") }
	return "concert-" + dash(date) + "-" + dash(location)
}

func formatOptionalDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return util.FormatConcertDate(raw)
}
