// Package session owns the state that lives for one server run: the resolver
// memo, the artist locations cache, the catalog and search caches, and every
// live-search debouncer. Nothing here is global; Close tears it all down.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/spotmyartist/internal/debounce"
	"github.com/kapu/spotmyartist/internal/geo"
	"github.com/kapu/spotmyartist/internal/service/albums"
	"github.com/kapu/spotmyartist/internal/service/groupie"
	"github.com/kapu/spotmyartist/internal/service/locations"
	"github.com/kapu/spotmyartist/internal/service/mapview"
	"github.com/kapu/spotmyartist/internal/service/matcher"
	"github.com/kapu/spotmyartist/internal/service/wiki"
	"go.uber.org/zap"
)

// Dependencies lists everything a session is assembled from. Closer, Breakers
// and SharedCache may be nil.
type Dependencies struct {
	Logger        *zap.Logger
	Catalog       *groupie.Catalog
	Resolver      *geo.Resolver
	Locations     *locations.Cache
	Matcher       *matcher.ArtistMatcher
	External      *matcher.ExternalSearch
	Maps          *mapview.Builder
	Wiki          *wiki.ScraperService
	Albums        *albums.Loader
	DebounceDelay time.Duration
	Closer        func() error
	Breakers      map[string]BreakerReporter
	SharedCache   Pinger
}

type Session struct {
	Catalog   *groupie.Catalog
	Resolver  *geo.Resolver
	Locations *locations.Cache
	Matcher   *matcher.ArtistMatcher
	External  *matcher.ExternalSearch
	Maps      *mapview.Builder
	Wiki      *wiki.ScraperService
	Albums    *albums.Loader

	logger        *zap.Logger
	debounceDelay time.Duration
	closer        func() error
	breakers      map[string]BreakerReporter
	sharedCache   Pinger

	mu         sync.Mutex
	debouncers map[*debounce.Debouncer]struct{}
	closed     bool
}

func New(deps *Dependencies) (*Session, error) {
	if deps == nil {
		return nil, fmt.Errorf("session dependencies must not be nil")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if deps.Catalog == nil || deps.Resolver == nil || deps.Locations == nil {
		return nil, fmt.Errorf("catalog, resolver and locations cache are required")
	}
	if deps.Matcher == nil || deps.Maps == nil {
		return nil, fmt.Errorf("matcher and map builder are required")
	}

	return &Session{
		Catalog:       deps.Catalog,
		Resolver:      deps.Resolver,
		Locations:     deps.Locations,
		Matcher:       deps.Matcher,
		External:      deps.External,
		Maps:          deps.Maps,
		Wiki:          deps.Wiki,
		Albums:        deps.Albums,
		logger:        deps.Logger,
		debounceDelay: deps.DebounceDelay,
		closer:        deps.Closer,
		breakers:      deps.Breakers,
		sharedCache:   deps.SharedCache,
		debouncers:    make(map[*debounce.Debouncer]struct{}),
	}, nil
}

// Init warms the catalog and the locations cache. A failure is logged and the
// caches fill lazily instead.
func (s *Session) Init(ctx context.Context) {
	start := time.Now()

	if err := s.Catalog.Warm(ctx); err != nil {
		s.logger.Warn("Catalog warm-up failed, loading lazily", zap.Error(err))
		return
	}
	if err := s.Locations.LoadAll(ctx); err != nil {
		s.logger.Warn("Locations warm-up failed, loading lazily", zap.Error(err))
	}

	s.logger.Info("Session initialized",
		zap.Int("locations", s.Locations.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// NewDebouncer returns a debouncer tied to the session; Close stops it.
// Callers release it with ReleaseDebouncer once their connection ends.
func (s *Session) NewDebouncer() *debounce.Debouncer {
	d := debounce.New(s.debounceDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		d.Stop()
		return d
	}
	s.debouncers[d] = struct{}{}
	return d
}

func (s *Session) ReleaseDebouncer(d *debounce.Debouncer) {
	d.Stop()
	s.mu.Lock()
	delete(s.debouncers, d)
	s.mu.Unlock()
}

// ActiveDebouncers reports how many live-search connections hold a debouncer.
func (s *Session) ActiveDebouncers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debouncers)
}

// Close cancels pending filter runs and drops every cache. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.debouncers
	s.debouncers = make(map[*debounce.Debouncer]struct{})
	s.mu.Unlock()

	for d := range pending {
		d.Stop()
	}

	s.Resolver.Reset()
	s.Locations.Reset()
	s.Catalog.Reset()
	s.Matcher.Invalidate()

	s.logger.Info("Session closed", zap.Int("stopped_debouncers", len(pending)))

	if s.closer != nil {
		return s.closer()
	}
	return nil
}
