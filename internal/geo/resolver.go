package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is the single outcome for a place that could not be resolved,
// whatever the cause. Callers test for it with errors.Is.
var ErrNotFound = errors.New("location not found")

// Geocoder is the external fallback. restricted limits the search to the
// configured country allow-list.
type Geocoder interface {
	Search(ctx context.Context, query string, restricted bool) (domain.Coordinate, error)
}

// SharedCache is an optional second memo tier shared between processes.
type SharedCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type ResolverConfig struct {
	HitTTL         time.Duration
	MissTTL        time.Duration
	MinQueryLength int

	// LookupTimeout bounds one shared remote lookup. Defaults to LookupBudget of
	// the default geocoder request timeout.
	LookupTimeout time.Duration
}

// LookupBudget is the time one place lookup may take: a restricted and an
// unrestricted geocoder request of requestTimeout each, plus a margin.
func LookupBudget(requestTimeout time.Duration) time.Duration {
	if requestTimeout <= 0 {
		requestTimeout = constants.GeocoderConfig.RequestTimeout
	}
	return 2*requestTimeout + constants.GeocoderConfig.LookupMargin
}

// Resolver maps free-text place names to coordinates. Results, including
// definitive misses, are memoized by normalized key for the resolver's lifetime;
// transient geocoder failures are not.
type Resolver struct {
	gazetteer *Gazetteer
	geocoder  Geocoder
	shared    SharedCache
	cfg       ResolverConfig
	logger    *zap.Logger

	mu    sync.RWMutex
	memo  map[string]memoEntry
	group singleflight.Group
}

type memoEntry struct {
	Found      bool                  `json:"found"`
	Coordinate domain.Coordinate     `json:"coordinate"`
	Source     domain.LocationSource `json:"source"`
}

var missEntry = memoEntry{}

// NewResolver builds a resolver. geocoder and shared may be nil: without a geocoder
// every gazetteer miss is final, without a shared cache only the local memo is used.
func NewResolver(gazetteer *Gazetteer, geocoder Geocoder, shared SharedCache, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if cfg.HitTTL <= 0 {
		cfg.HitTTL = constants.CacheTTL.GeocodeHit
	}
	if cfg.MissTTL <= 0 {
		cfg.MissTTL = constants.CacheTTL.GeocodeMiss
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = constants.GeocoderConfig.MinQueryLength
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = LookupBudget(0)
	}
	return &Resolver{
		gazetteer: gazetteer,
		geocoder:  geocoder,
		shared:    shared,
		cfg:       cfg,
		logger:    logger,
		memo:      make(map[string]memoEntry),
	}
}

// Resolve returns the coordinate for name, or an error wrapping ErrNotFound.
// Blank input fails without any network call.
//
// Concurrent callers for one key share a single lookup. That lookup runs
// detached from the caller that started it, under its own LookupTimeout; each
// caller still stops waiting when its own ctx ends.
func (r *Resolver) Resolve(ctx context.Context, name string) (domain.Location, error) {
	key := NormalizeKey(name)
	if key == "" {
		return domain.Location{}, fmt.Errorf("%w: empty place name", ErrNotFound)
	}

	entry, ok := r.recall(key)
	if !ok {
		ch := r.group.DoChan(key, func() (any, error) {
			if cached, hit := r.recall(key); hit {
				return cached, nil
			}
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LookupTimeout)
			defer cancel()

			resolved, definitive := r.resolveKey(lookupCtx, key)
			if definitive {
				r.remember(key, resolved)
			}
			return resolved, nil
		})

		select {
		case res := <-ch:
			entry = res.Val.(memoEntry)
		case <-ctx.Done():
			return domain.Location{}, fmt.Errorf("%w: %q: %v", ErrNotFound, name, ctx.Err())
		}
	}

	if !entry.Found {
		return domain.Location{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return domain.Location{Name: name, Coordinate: entry.Coordinate, Source: entry.Source}, nil
}

// Reset drops the memo. Used at session teardown.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.memo = make(map[string]memoEntry)
	r.mu.Unlock()
}

// MemoSize reports how many keys are memoized. Shown by /health.
func (r *Resolver) MemoSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memo)
}

func (r *Resolver) recall(key string) (memoEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.memo[key]
	return e, ok
}

func (r *Resolver) remember(key string, e memoEntry) {
	r.mu.Lock()
	r.memo[key] = e
	r.mu.Unlock()
}

// resolveKey runs every stage in order. The boolean is false when the outcome came
// from a transient failure and must not be memoized.
func (r *Resolver) resolveKey(ctx context.Context, key string) (memoEntry, bool) {
	if e, ok := r.resolveOffline(key); ok {
		return e, true
	}
	return r.resolveRemote(ctx, key)
}

func (r *Resolver) resolveOffline(key string) (memoEntry, bool) {
	if c, ok := r.gazetteer.Lookup(key); ok {
		return memoEntry{Found: true, Coordinate: c, Source: domain.SourceGazetteer}, true
	}

	for _, v := range Variants(key)[1:] {
		if c, ok := r.gazetteer.Lookup(v); ok {
			return memoEntry{Found: true, Coordinate: c, Source: domain.SourceVariant}, true
		}
	}

	if c, ok := r.applyRules(key); ok {
		return memoEntry{Found: true, Coordinate: c, Source: domain.SourceRule}, true
	}

	if c, ok := r.fuzzy(key); ok {
		return memoEntry{Found: true, Coordinate: c, Source: domain.SourceFuzzy}, true
	}

	return missEntry, false
}

// placeRule pins ambiguous region names before the generic prefix scan can
// pick a short key by accident.
type placeRule struct {
	matches  func(key string) bool
	targets  []string
	fallback *domain.Coordinate
}

func containsAny(needles ...string) func(string) bool {
	return func(key string) bool {
		for _, n := range needles {
			if strings.Contains(key, n) {
				return true
			}
		}
		return false
	}
}

var placeRules = []placeRule{
	{matches: containsAny("los angeles"), targets: []string{"los angeles", "los angeles ca"}},
	{
		matches:  func(key string) bool { return key == "nz" || strings.Contains(key, "new zealand") },
		targets:  []string{"new zealand"},
		fallback: &domain.Coordinate{Lat: -41.2865, Lng: 174.7762},
	},
	{
		matches:  containsAny("denmark", "danemark"),
		targets:  []string{"denmark"},
		fallback: &domain.Coordinate{Lat: 56.2639, Lng: 9.5018},
	},
	{matches: containsAny("copenhag"), targets: []string{"copenhagen", "copenhague"}},
	{
		matches:  containsAny("belarus", "bieloruss"),
		targets:  []string{"belarus"},
		fallback: &domain.Coordinate{Lat: 53.9, Lng: 27.5667},
	},
}

func (r *Resolver) applyRules(key string) (domain.Coordinate, bool) {
	for _, rule := range placeRules {
		if !rule.matches(key) {
			continue
		}
		for _, target := range rule.targets {
			if c, ok := r.gazetteer.Lookup(target); ok {
				return c, true
			}
		}
		if rule.fallback != nil {
			return *rule.fallback, true
		}
	}
	return domain.Coordinate{}, false
}

// fuzzy returns the first table entry, in table order, whose key and the
// candidate are prefixes of one another, or whose key contains a candidate
// longer than three characters.
func (r *Resolver) fuzzy(key string) (domain.Coordinate, bool) {
	candidate := mainCity(key)

	var (
		found domain.Coordinate
		ok    bool
	)
	r.gazetteer.Each(func(e Entry) bool {
		if strings.HasPrefix(e.Key, candidate) ||
			strings.HasPrefix(candidate, e.Key) ||
			(len(candidate) > 3 && strings.Contains(e.Key, candidate)) {
			found, ok = e.Coordinate, true
			return false
		}
		return true
	})
	return found, ok
}

func (r *Resolver) resolveRemote(ctx context.Context, key string) (memoEntry, bool) {
	if r.geocoder == nil {
		return missEntry, true
	}

	sharedKey := "geo:" + key
	if r.shared != nil {
		var cached memoEntry
		found, err := r.shared.GetJSON(ctx, sharedKey, &cached)
		if err != nil {
			r.logger.Warn("Shared geocode cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			return cached, true
		}
	}

	query := searchQuery(key, r.cfg.MinQueryLength)

	coord, firstErr := r.geocoder.Search(ctx, query, true)
	if firstErr == nil {
		return r.storeRemote(ctx, sharedKey, memoEntry{Found: true, Coordinate: coord, Source: domain.SourceGeocoder}), true
	}
	if !definitiveMiss(firstErr) {
		r.logger.Debug("Geocoder unavailable, treating as miss",
			zap.String("query", query),
			zap.Error(firstErr),
		)
		return missEntry, false
	}

	coord, err := r.geocoder.Search(ctx, query, false)
	if err == nil {
		return r.storeRemote(ctx, sharedKey, memoEntry{Found: true, Coordinate: coord, Source: domain.SourceGeocoder}), true
	}

	if definitiveMiss(err) {
		r.logger.Debug("Place not found by geocoder",
			zap.String("query", query),
			zap.NamedError("restricted", firstErr),
			zap.NamedError("unrestricted", err),
		)
		return r.storeRemote(ctx, sharedKey, missEntry), true
	}

	r.logger.Debug("Geocoder fallback failed",
		zap.String("query", query),
		zap.Error(err),
	)
	return missEntry, false
}

func (r *Resolver) storeRemote(ctx context.Context, sharedKey string, e memoEntry) memoEntry {
	if r.shared == nil {
		return e
	}
	ttl := r.cfg.HitTTL
	if !e.Found {
		ttl = r.cfg.MissTTL
	}
	if err := r.shared.SetJSON(ctx, sharedKey, e, ttl); err != nil {
		r.logger.Warn("Shared geocode cache write failed", zap.String("key", sharedKey), zap.Error(err))
	}
	return e
}

// definitiveMiss reports whether the geocoder gave a final answer: no result, or
// a non-retryable client status. Only such a restricted failure is retried
// unrestricted, and only two of them in a row are memoized as a miss.
func definitiveMiss(err error) bool {
	if errors.Is(err, ErrNoResult) {
		return true
	}
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}
