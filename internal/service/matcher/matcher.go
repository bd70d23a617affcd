package matcher

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	"go.uber.org/zap"
)

// ArtistSource provides the full artist list.
type ArtistSource interface {
	Artists(ctx context.Context) ([]domain.Artist, error)
}

// SearchResult is the answer to a name search. Suggestions are only filled
// when nothing matched.
type SearchResult struct {
	Results     []domain.Artist `json:"results"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type MatchCacheEntry struct {
	Result    SearchResult
	Timestamp time.Time
}

type ArtistMatcher struct {
	source                ArtistSource
	logger                *zap.Logger
	matchCache            map[string]*MatchCacheEntry
	matchCacheMu          sync.RWMutex
	matchCacheTTL         time.Duration
	matchCacheLastCleanup time.Time
	maxSuggestions        int
	maxDistance           int
}

func NewArtistMatcher(source ArtistSource, logger *zap.Logger) *ArtistMatcher {
	return &ArtistMatcher{
		source:                source,
		logger:                logger,
		matchCache:            make(map[string]*MatchCacheEntry),
		matchCacheTTL:         constants.CacheTTL.SearchMatch,
		matchCacheLastCleanup: time.Now(),
		maxSuggestions:        constants.ViewConfig.MaxSuggestions,
		maxDistance:           constants.ViewConfig.SuggestDistance,
	}
}

// Search returns the artists whose name contains query, ignoring case. A blank
// query returns every artist.
func (m *ArtistMatcher) Search(ctx context.Context, query string) (SearchResult, error) {
	queryNorm := util.Normalize(query)

	if cached, ok := m.getCached(queryNorm); ok {
		return cached, nil
	}

	artists, err := m.source.Artists(ctx)
	if err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Results: []domain.Artist{}}
	if queryNorm == "" {
		result.Results = artists
		return result, nil
	}

	for _, a := range artists {
		if util.ContainsFold(a.Name, queryNorm) {
			result.Results = append(result.Results, a)
		}
	}
	if len(result.Results) == 0 {
		result.Suggestions = m.suggest(artists, queryNorm)
		m.logger.Debug("No artist matched, suggesting",
			zap.String("query", queryNorm),
			zap.Strings("suggestions", result.Suggestions),
		)
	}

	m.setCached(queryNorm, result)
	return result, nil
}

// Invalidate drops every cached match.
func (m *ArtistMatcher) Invalidate() {
	m.matchCacheMu.Lock()
	m.matchCache = make(map[string]*MatchCacheEntry)
	m.matchCacheMu.Unlock()
}

type suggestion struct {
	name     string
	distance int
}

// suggest ranks artist names by edit distance to the query, comparing against
// the full name and each of its words.
func (m *ArtistMatcher) suggest(artists []domain.Artist, queryNorm string) []string {
	if len([]rune(queryNorm)) < 3 {
		return nil
	}

	var found []suggestion
	for _, a := range artists {
		nameNorm := util.Normalize(a.Name)
		best := levenshtein.ComputeDistance(queryNorm, nameNorm)
		for _, word := range strings.Fields(nameNorm) {
			if d := levenshtein.ComputeDistance(queryNorm, word); d < best {
				best = d
			}
		}
		if best <= m.maxDistance {
			found = append(found, suggestion{name: a.Name, distance: best})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		return found[i].name < found[j].name
	})

	out := make([]string, 0, m.maxSuggestions)
	for _, s := range found {
		if len(out) == m.maxSuggestions {
			break
		}
		out = append(out, s.name)
	}
	return out
}

func (m *ArtistMatcher) getCached(key string) (SearchResult, bool) {
	m.matchCacheMu.RLock()
	defer m.matchCacheMu.RUnlock()

	entry, ok := m.matchCache[key]
	if !ok || time.Since(entry.Timestamp) > m.matchCacheTTL {
		return SearchResult{}, false
	}
	return entry.Result, true
}

func (m *ArtistMatcher) setCached(key string, result SearchResult) {
	m.matchCacheMu.Lock()
	defer m.matchCacheMu.Unlock()

	now := time.Now()
	m.matchCache[key] = &MatchCacheEntry{Result: result, Timestamp: now}

	if now.Sub(m.matchCacheLastCleanup) > m.matchCacheTTL {
		for k, entry := range m.matchCache {
			if now.Sub(entry.Timestamp) > m.matchCacheTTL {
				delete(m.matchCache, k)
			}
		}
		m.matchCacheLastCleanup = now
	}
}
