package server

import (
	"context"
	"net/http"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/filter"
	"github.com/kapu/spotmyartist/internal/service/mapview"
	"github.com/kapu/spotmyartist/internal/view"
	"go.uber.org/zap"
)

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cards, err := s.filteredCards(r.Context(), criteria)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// filteredCards runs the filters over the catalog. The locations cache is only
// consulted, and filled on first use, when a city is requested.
func (s *Server) filteredCards(ctx context.Context, criteria filter.Criteria) (view.CardList, error) {
	artists, err := s.session.Catalog.Artists(ctx)
	if err != nil {
		return view.CardList{}, err
	}

	var places map[int][]string
	if criteria.NeedsLocations() {
		places, err = s.locationSnapshot(ctx)
		if err != nil {
			return view.CardList{}, err
		}
	}

	return view.Cards(filter.Apply(artists, criteria, places)), nil
}

// locationSnapshot returns the places of every artist, bulk-loading them first
// unless that already happened. Entries filled by single artist loads do not count.
func (s *Server) locationSnapshot(ctx context.Context) (map[int][]string, error) {
	if !s.session.Locations.BulkLoaded() {
		if err := s.session.Locations.LoadAll(ctx); err != nil {
			return nil, err
		}
	}
	return s.session.Locations.Snapshot(), nil
}

// artistDetail joins the artist with its cached concerts. When the concerts
// cannot be loaded the detail is still served, with an empty list.
func (s *Server) artistDetail(ctx context.Context, id int) (domain.ArtistDetail, error) {
	artist, err := s.session.Catalog.FindArtist(ctx, id)
	if err != nil {
		return domain.ArtistDetail{}, err
	}

	concerts, err := s.session.Locations.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Concert lookup failed", zap.Int("artist_id", id), zap.Error(err))
		concerts = []domain.ConcertInfo{}
	}
	return domain.ArtistDetail{Artist: artist, ConcertInfo: concerts}, nil
}

func (s *Server) handleArtistView(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail, err := s.artistDetail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.ArtistDetail(detail))
}

func (s *Server) handleArtistMap(w http.ResponseWriter, r *http.Request) {
	id, err := artistID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	artist, err := s.session.Catalog.FindArtist(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	concerts, err := s.session.Locations.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stops := mapview.StopsFromConcerts(concerts)
	for i := range stops {
		stops[i].Artists = []string{artist.Name}
	}

	res, err := s.session.Maps.Build(r.Context(), stops)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(res.Failed) > 0 {
		s.logger.Info("Some concert places could not be mapped",
			zap.Int("artist_id", id),
			zap.Strings("failed", res.Failed),
		)
	}
	writeJSON(w, http.StatusOK, view.Map(artist.Name, res))
}

func (s *Server) handleOverviewMap(w http.ResponseWriter, r *http.Request) {
	artists, err := s.session.Catalog.Artists(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	places, err := s.locationSnapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.session.Maps.BuildOverview(r.Context(), artists, places)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Map("All concerts", res))
}

// handleCarousel lays out the background images, from the artists or, with
// source=albums, from the albums file.
func (s *Server) handleCarousel(w http.ResponseWriter, r *http.Request) {
	columns := constants.ViewConfig.CarouselColumns
	perColumn := constants.ViewConfig.ImagesPerColumn

	if r.URL.Query().Get("source") == "albums" {
		var columnsOut [][]view.CarouselImage
		if s.session.Albums != nil {
			columnsOut = view.AlbumCarousel(s.session.Albums.Images(), columns, perColumn)
		} else {
			columnsOut = [][]view.CarouselImage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"columns": columnsOut})
		return
	}

	artists, err := s.session.Catalog.Artists(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": view.Carousel(artists, columns, perColumn)})
}
