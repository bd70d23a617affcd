package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kapu/spotmyartist/internal/domain"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
)

func (s *Server) handleArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.session.Catalog.Artists(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artists)
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	index, err := s.session.Catalog.Locations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

func (s *Server) handleRelations(w http.ResponseWriter, r *http.Request) {
	index, err := s.session.Catalog.Relations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.Matcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExternalSearch(w http.ResponseWriter, r *http.Request) {
	if s.session.External == nil {
		writeJSON(w, http.StatusOK, map[string]any{"artists": []domain.ExternalArtist{}})
		return
	}

	artists, err := s.session.External.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

func (s *Server) handleWikiSearch(w http.ResponseWriter, r *http.Request) {
	if s.session.Wiki == nil {
		s.writeError(w, r, apperrors.NewAppError("wiki search disabled", apperrors.CodeService, http.StatusServiceUnavailable, nil))
		return
	}

	summary, err := s.session.Wiki.Summary(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAlbumImages(w http.ResponseWriter, _ *http.Request) {
	images := []domain.AlbumImage{}
	if s.session.Albums != nil {
		images = s.session.Albums.Images()
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, r, apperrors.NewValidationError("query is required", "q", q))
		return
	}

	loc, err := s.session.Resolver.Resolve(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func artistID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid artist id", "id", raw)
	}
	return id, nil
}
