package locations

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/geo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is the upstream the cache fills from. ConcertInfo must return an error
// when the concerts could not be loaded, never an empty list in its place.
type Source interface {
	ConcertInfo(ctx context.Context, id int) ([]domain.ConcertInfo, error)
	Locations(ctx context.Context) ([]domain.LocationIndex, error)
}

// Cache maps artist ids to their concert places. Entries never expire; Reset is
// the only way to drop them.
//
// Two views are kept: the places of every artist, filled per artist or in bulk
// from the locations index, and the concerts with their dates, filled only by
// per-artist loads since the index carries no dates.
type Cache struct {
	source Source
	logger *zap.Logger

	places     sync.Map // int -> []string
	concerts   sync.Map // int -> []domain.ConcertInfo
	group      singleflight.Group
	bulkLoaded atomic.Bool
}

func NewCache(source Source, logger *zap.Logger) *Cache {
	return &Cache{
		source: source,
		logger: logger,
	}
}

// Get returns the concerts of one artist, one entry per distinct place, loading
// them on first use. Concurrent first requests for the same id share a single
// upstream call. Failed loads are not cached.
func (c *Cache) Get(ctx context.Context, artistID int) ([]domain.ConcertInfo, error) {
	if v, ok := c.concerts.Load(artistID); ok {
		return v.([]domain.ConcertInfo), nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(artistID), func() (any, error) {
		if v, ok := c.concerts.Load(artistID); ok {
			return v, nil
		}

		loaded, err := c.source.ConcertInfo(ctx, artistID)
		if err != nil {
			c.logger.Debug("Artist locations load failed",
				zap.Int("artist_id", artistID),
				zap.Error(err),
			)
			return nil, err
		}

		merged := MergeConcerts(loaded)
		actual, _ := c.concerts.LoadOrStore(artistID, merged)

		places := make([]string, 0, len(merged))
		for _, ci := range merged {
			places = append(places, ci.Location)
		}
		c.places.LoadOrStore(artistID, places)

		c.logger.Debug("Artist locations cached",
			zap.Int("artist_id", artistID),
			zap.Int("places", len(places)),
		)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ConcertInfo), nil
}

// LoadAll fills the places of every artist from the bulk locations index.
// Entries already present are kept. After the first success BulkLoaded reports
// true until Reset.
func (c *Cache) LoadAll(ctx context.Context) error {
	index, err := c.source.Locations(ctx)
	if err != nil {
		return err
	}

	added := 0
	for _, row := range index {
		if _, loaded := c.places.LoadOrStore(row.ID, Dedupe(row.Locations)); !loaded {
			added++
		}
	}
	c.bulkLoaded.Store(true)

	c.logger.Info("Artist locations loaded in bulk",
		zap.Int("rows", len(index)),
		zap.Int("added", added),
	)
	return nil
}

// BulkLoaded reports whether LoadAll has succeeded since the last Reset. Per
// artist loads alone never make it true.
func (c *Cache) BulkLoaded() bool {
	return c.bulkLoaded.Load()
}

// Snapshot copies the current places for read-only use by filters.
func (c *Cache) Snapshot() map[int][]string {
	out := make(map[int][]string)
	c.places.Range(func(k, v any) bool {
		out[k.(int)] = v.([]string)
		return true
	})
	return out
}

// Len reports how many artists have places cached.
func (c *Cache) Len() int {
	n := 0
	c.places.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *Cache) Reset() {
	c.bulkLoaded.Store(false)
	c.places.Range(func(k, _ any) bool {
		c.places.Delete(k)
		return true
	})
	c.concerts.Range(func(k, _ any) bool {
		c.concerts.Delete(k)
		return true
	})
}

// Dedupe drops places whose normalized key was already seen, keeping the first
// spelling and the original order. Blank places are dropped.
func Dedupe(places []string) []string {
	out := make([]string, 0, len(places))
	seen := make(map[string]struct{}, len(places))
	for _, p := range places {
		key := geo.NormalizeKey(p)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// MergeConcerts folds concerts whose places share a normalized key into the
// first one, appending the dates. Blank places are dropped.
func MergeConcerts(concerts []domain.ConcertInfo) []domain.ConcertInfo {
	out := make([]domain.ConcertInfo, 0, len(concerts))
	at := make(map[string]int, len(concerts))
	for _, ci := range concerts {
		key := geo.NormalizeKey(ci.Location)
		if key == "" {
			continue
		}
		if i, dup := at[key]; dup {
			out[i].Dates = append(out[i].Dates, ci.Dates...)
			continue
		}
		at[key] = len(out)
		dates := make([]string, len(ci.Dates))
		copy(dates, ci.Dates)
		out = append(out, domain.ConcertInfo{Location: ci.Location, Dates: dates})
	}
	return out
}
