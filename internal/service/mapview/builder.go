package mapview

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/geo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Resolver is the subset of geo.Resolver the builder needs.
type Resolver interface {
	Resolve(ctx context.Context, name string) (domain.Location, error)
}

// Stop is one place to put on a map.
type Stop struct {
	Place   string
	Dates   []string
	Artists []string
}

// Marker is a resolved stop.
type Marker struct {
	Place      string
	Coordinate domain.Coordinate
	Source     domain.LocationSource
	Dates      []string
	Artists    []string
}

// Result is the outcome of one map build. Failed lists the places that could
// not be resolved, in input order. Bounds is nil when no marker was placed, in
// which case Center and Zoom hold the default view.
type Result struct {
	Markers []Marker
	Failed  []string
	Bounds  *domain.Bounds
	Center  domain.Coordinate
	Zoom    int
}

type Config struct {
	StepDelay     time.Duration
	LookupTimeout time.Duration
	OverviewPool  int
}

type Builder struct {
	resolver Resolver
	cfg      Config
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewBuilder(resolver Resolver, cfg Config, logger *zap.Logger) *Builder {
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = geo.LookupBudget(0)
	}
	if cfg.OverviewPool <= 0 {
		cfg.OverviewPool = constants.MapConfig.OverviewPool
	}
	return &Builder{
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Build resolves the stops one after another, waiting StepDelay*i before the
// i-th lookup. A stop that cannot be resolved is reported in Failed and does not
// affect the others. Build only returns an error when ctx is done.
func (b *Builder) Build(ctx context.Context, stops []Stop) (Result, error) {
	markers := make([]Marker, 0, len(stops))
	var failed []string

	for i, stop := range stops {
		if err := b.sleep(ctx, time.Duration(i)*b.cfg.StepDelay); err != nil {
			return Result{}, err
		}

		marker, ok := b.resolve(ctx, stop)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !ok {
			failed = append(failed, stop.Place)
			continue
		}
		markers = append(markers, marker)
	}

	b.logger.Debug("Map built",
		zap.Int("markers", len(markers)),
		zap.Int("stops", len(stops)),
		zap.Strings("failed", failed),
	)
	return finish(markers, failed), nil
}

// BuildOverview maps every concert place of the given artists. Places are
// merged by normalized key and resolved by a small bounded pool.
func (b *Builder) BuildOverview(ctx context.Context, artists []domain.Artist, locations map[int][]string) (Result, error) {
	stops := mergeStops(artists, locations)

	type outcome struct {
		marker Marker
		ok     bool
	}
	outcomes := make([]outcome, len(stops))

	p := pool.New().WithMaxGoroutines(b.cfg.OverviewPool)
	for i := range stops {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			m, ok := b.resolve(ctx, stops[i])
			outcomes[i] = outcome{marker: m, ok: ok}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	markers := make([]Marker, 0, len(stops))
	var failed []string
	for i, o := range outcomes {
		if o.ok {
			markers = append(markers, o.marker)
		} else {
			failed = append(failed, stops[i].Place)
		}
	}

	b.logger.Info("Overview map built",
		zap.Int("markers", len(markers)),
		zap.Int("places", len(stops)),
		zap.Int("failed", len(failed)),
	)
	return finish(markers, failed), nil
}

func (b *Builder) resolve(ctx context.Context, stop Stop) (Marker, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, b.cfg.LookupTimeout)
	defer cancel()

	loc, err := b.resolver.Resolve(lookupCtx, stop.Place)
	if err != nil {
		if !errors.Is(err, geo.ErrNotFound) {
			b.logger.Warn("Place lookup failed", zap.String("place", stop.Place), zap.Error(err))
		} else {
			b.logger.Debug("Place not geocoded", zap.String("place", stop.Place))
		}
		return Marker{}, false
	}

	return Marker{
		Place:      stop.Place,
		Coordinate: loc.Coordinate,
		Source:     loc.Source,
		Dates:      stop.Dates,
		Artists:    stop.Artists,
	}, true
}

func finish(markers []Marker, failed []string) Result {
	res := Result{
		Markers: markers,
		Failed:  failed,
		Center:  domain.Coordinate{Lat: constants.MapConfig.DefaultLat, Lng: constants.MapConfig.DefaultLng},
		Zoom:    constants.MapConfig.DefaultZoom,
	}
	if res.Failed == nil {
		res.Failed = []string{}
	}

	coords := make([]domain.Coordinate, len(markers))
	for i, m := range markers {
		coords[i] = m.Coordinate
	}
	if bounds, center, ok := geo.BoundsOf(coords); ok {
		res.Bounds = &bounds
		res.Center = center
		res.Zoom = 0
	}
	return res
}

// StopsFromConcerts turns an artist's concert list into map stops, merging
// places that normalize to the same key.
func StopsFromConcerts(concerts []domain.ConcertInfo) []Stop {
	index := make(map[string]int, len(concerts))
	stops := make([]Stop, 0, len(concerts))
	for _, ci := range concerts {
		key := geo.NormalizeKey(ci.Location)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			stops[i].Dates = append(stops[i].Dates, ci.Dates...)
			continue
		}
		index[key] = len(stops)
		stops = append(stops, Stop{Place: ci.Location, Dates: append([]string(nil), ci.Dates...)})
	}
	return stops
}

func mergeStops(artists []domain.Artist, locations map[int][]string) []Stop {
	sorted := append([]domain.Artist(nil), artists...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[string]int)
	var stops []Stop
	for _, a := range sorted {
		for _, place := range locations[a.ID] {
			key := geo.NormalizeKey(place)
			if key == "" {
				continue
			}
			if i, ok := index[key]; ok {
				stops[i].Artists = append(stops[i].Artists, a.Name)
				continue
			}
			index[key] = len(stops)
			stops = append(stops, Stop{Place: place, Artists: []string{a.Name}})
		}
	}
	return stops
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
