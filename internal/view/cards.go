// Package view turns catalog data into the view models the page renders.
//
// Every builder is a pure function of its input. Upstream fields are optional
// and defaulted the same way everywhere:
//
//	name           "Unknown artist" when blank
//	image          constants.ViewConfig.DefaultImage when blank
//	members        empty list, count 0, no label
//	creationDate   0 means unknown, no label
//	firstAlbum     shown as given when not a dd-mm-yyyy date, omitted when blank
//	genre          empty string
//	concert dates  ISO 8601 when parseable, else the raw text without the "*" marker
package view

import (
	"fmt"
	"strings"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/samber/lo"
)

const (
	unknownArtist = "Unknown artist"
	noResults     = "No artist found"
)

type Card struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Image        string `json:"image"`
	MemberCount  int    `json:"memberCount"`
	MembersLabel string `json:"membersLabel,omitempty"`
	CreatedLabel string `json:"createdLabel,omitempty"`
	Genre        string `json:"genre,omitempty"`
}

type CardList struct {
	Cards   []Card `json:"cards"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Cards builds one card per artist, in input order. An empty input yields an
// empty list carrying the "no results" message.
func Cards(artists []domain.Artist) CardList {
	cards := lo.Map(artists, func(a domain.Artist, _ int) Card {
		return Card{
			ID:           a.ID,
			Name:         displayName(a.Name),
			Image:        imageOrDefault(a.Image),
			MemberCount:  len(a.Members),
			MembersLabel: membersLabel(len(a.Members)),
			CreatedLabel: createdLabel(a.CreationDate),
			Genre:        a.Genre,
		}
	})

	list := CardList{Cards: cards, Total: len(cards)}
	if len(cards) == 0 {
		list.Message = noResults
	}
	return list
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return unknownArtist
}

func imageOrDefault(image string) string {
	if image = strings.TrimSpace(image); image != "" {
		return image
	}
	return constants.ViewConfig.DefaultImage
}

func membersLabel(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "1 member"
	default:
		return fmt.Sprintf("%d members", n)
	}
}

func createdLabel(year int) string {
	if year <= 0 {
		return ""
	}
	return fmt.Sprintf("Created in %d", year)
}
