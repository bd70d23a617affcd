package view

import (
	"strings"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/samber/lo"
)

type CarouselImage struct {
	Image string `json:"image"`
	Name  string `json:"name"`
}

// Carousel fills columns*perColumn slots by cycling through the artists that
// have an image, then deals the slots across columns: column c holds slots c,
// c+columns, c+2*columns and so on. No images, or a non-positive layout, yields
// no columns.
func Carousel(artists []domain.Artist, columns, perColumn int) [][]CarouselImage {
	withImages := lo.FilterMap(artists, func(a domain.Artist, _ int) (CarouselImage, bool) {
		img := strings.TrimSpace(a.Image)
		return CarouselImage{Image: img, Name: displayName(a.Name)}, img != ""
	})
	if len(withImages) == 0 || columns <= 0 || perColumn <= 0 {
		return [][]CarouselImage{}
	}

	total := columns * perColumn
	out := make([][]CarouselImage, columns)
	for c := range out {
		out[c] = make([]CarouselImage, 0, perColumn)
	}
	for i := 0; i < total; i++ {
		out[i%columns] = append(out[i%columns], withImages[i%len(withImages)])
	}
	return out
}

// AlbumCarousel is Carousel for the album images file.
func AlbumCarousel(albums []domain.AlbumImage, columns, perColumn int) [][]CarouselImage {
	artists := lo.Map(albums, func(a domain.AlbumImage, _ int) domain.Artist {
		return domain.Artist{ID: a.ID, Name: a.Name, Image: a.Photo}
	})
	return Carousel(artists, columns, perColumn)
}
