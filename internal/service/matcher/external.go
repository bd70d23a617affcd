package matcher

import (
	"context"
	"sort"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	"go.uber.org/zap"
)

// RelationSource provides the relation index of every artist. Implementations
// cache it, so one search costs at most one upstream call.
type RelationSource interface {
	Relations(ctx context.Context) ([]domain.Relation, error)
}

// ExternalSearcher is the fallback used when the catalog has no match.
type ExternalSearcher interface {
	SearchArtists(ctx context.Context, q string) ([]domain.ExternalArtist, error)
}

// ExternalSearch answers the external search box: catalog matches first, each
// with its concerts as events; when nothing matches locally the external
// searcher is asked instead. Its failures only log and yield an empty list.
type ExternalSearch struct {
	artists   ArtistSource
	relations RelationSource
	fallback  ExternalSearcher
	logger    *zap.Logger
}

func NewExternalSearch(artists ArtistSource, relations RelationSource, fallback ExternalSearcher, logger *zap.Logger) *ExternalSearch {
	return &ExternalSearch{
		artists:   artists,
		relations: relations,
		fallback:  fallback,
		logger:    logger,
	}
}

func (s *ExternalSearch) Search(ctx context.Context, q string) ([]domain.ExternalArtist, error) {
	all, err := s.artists.Artists(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.Artist
	for _, a := range all {
		if util.ContainsFold(a.Name, q) {
			matched = append(matched, a)
		}
	}

	out := []domain.ExternalArtist{}
	if len(matched) > 0 {
		relations := s.relationIndex(ctx)
		for _, a := range matched {
			ext := domain.ExternalArtist{Name: a.Name, Source: "catalog"}
			if a.Image != "" {
				ext.Images = []domain.ExternalImage{{URL: a.Image}}
			}
			ext.Events = events(a, relations[a.ID])
			out = append(out, ext)
		}
	}

	if len(out) > 0 || s.fallback == nil {
		return out, nil
	}

	found, err := s.fallback.SearchArtists(ctx, q)
	if err != nil {
		s.logger.Warn("External artist search failed", zap.String("query", q), zap.Error(err))
		return out, nil
	}
	return append(out, found...), nil
}

// relationIndex maps artist ids to their relation. A failed load only costs the
// events.
func (s *ExternalSearch) relationIndex(ctx context.Context) map[int]*domain.Relation {
	rows, err := s.relations.Relations(ctx)
	if err != nil {
		s.logger.Warn("Relation index unavailable, matches carry no events", zap.Error(err))
		return nil
	}
	byID := make(map[int]*domain.Relation, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	return byID
}

func events(a domain.Artist, rel *domain.Relation) []domain.ExternalEvent {
	if rel == nil {
		return nil
	}

	places := make([]string, 0, len(rel.DatesLocations))
	for place := range rel.DatesLocations {
		places = append(places, place)
	}
	sort.Strings(places)

	var out []domain.ExternalEvent
	for _, place := range places {
		for _, date := range rel.DatesLocations[place] {
			out = append(out, domain.ExternalEvent{
				Date:  date,
				Venue: place,
				Name:  a.Name + " Concert",
			})
		}
	}
	return out
}
