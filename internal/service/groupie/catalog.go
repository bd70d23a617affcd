package groupie

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Catalog serves the upstream artist data. The three index endpoints are cached
// after the first successful load; per-artist lookups fall back to upstream when
// the indexes do not hold the id.
type Catalog struct {
	requester Requester
	logger    *zap.Logger

	mu        sync.RWMutex
	artists   []domain.Artist
	locations []domain.LocationIndex
	relations []domain.Relation
}

func NewCatalog(requester Requester, logger *zap.Logger) *Catalog {
	return &Catalog{
		requester: requester,
		logger:    logger,
	}
}

// Warm loads the three index endpoints concurrently. Failures are logged and
// returned; the routes retry lazily on the next request.
func (c *Catalog) Warm(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithMaxGoroutines(3)
	p.Go(func(ctx context.Context) error {
		_, err := c.Artists(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := c.Locations(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := c.Relations(ctx)
		return err
	})

	if err := p.Wait(); err != nil {
		c.logger.Warn("Catalog warm-up incomplete", zap.Error(err))
		return err
	}
	return nil
}

// Artists returns every artist with its genre assigned.
func (c *Catalog) Artists(ctx context.Context) ([]domain.Artist, error) {
	c.mu.RLock()
	cached := c.artists
	c.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}

	var artists []domain.Artist
	if err := c.fetch(ctx, "/artists", &artists); err != nil {
		return nil, err
	}
	assignGenres(artists)

	c.mu.Lock()
	c.artists = artists
	c.mu.Unlock()

	c.logger.Info("Artists loaded", zap.Int("count", len(artists)))
	return artists, nil
}

// Artist fetches one artist. The upstream answers unknown ids with an empty
// object, which is reported as not found.
func (c *Catalog) Artist(ctx context.Context, id int) (domain.Artist, error) {
	if id <= 0 {
		return domain.Artist{}, errors.NewValidationError("invalid artist id", "id", id)
	}

	var artist domain.Artist
	if err := c.fetch(ctx, fmt.Sprintf("/artists/%d", id), &artist); err != nil {
		if errors.StatusOf(err) == 404 {
			return domain.Artist{}, errors.NewNotFoundError("artist", strconv.Itoa(id), err)
		}
		return domain.Artist{}, err
	}
	if artist.ID == 0 {
		return domain.Artist{}, errors.NewNotFoundError("artist", strconv.Itoa(id), nil)
	}
	artist.Genre = GenreFor(artist.Name, artist.CreationDate)
	return artist, nil
}

// Relation fetches the date/place relation of one artist.
func (c *Catalog) Relation(ctx context.Context, id int) (*domain.Relation, error) {
	var rel domain.Relation
	if err := c.fetch(ctx, fmt.Sprintf("/relation/%d", id), &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// FindArtist looks id up in the cached artist index and only goes upstream for
// ids the index does not hold.
func (c *Catalog) FindArtist(ctx context.Context, id int) (domain.Artist, error) {
	if id <= 0 {
		return domain.Artist{}, errors.NewValidationError("invalid artist id", "id", id)
	}

	artists, err := c.Artists(ctx)
	if err != nil {
		c.logger.Debug("Artist index unavailable, fetching single artist", zap.Int("artist_id", id), zap.Error(err))
	}
	for _, a := range artists {
		if a.ID == id {
			return a, nil
		}
	}
	return c.Artist(ctx, id)
}

// ConcertInfo returns the concerts of one artist ordered by location. Unlike the
// index endpoints, a failed relation lookup is returned to the caller.
func (c *Catalog) ConcertInfo(ctx context.Context, id int) ([]domain.ConcertInfo, error) {
	rel, err := c.RelationFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return rel.ConcertInfos(), nil
}

// Locations returns the /locations index.
func (c *Catalog) Locations(ctx context.Context) ([]domain.LocationIndex, error) {
	c.mu.RLock()
	cached := c.locations
	c.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}

	var payload struct {
		Index []domain.LocationIndex `json:"index"`
	}
	if err := c.fetch(ctx, "/locations", &payload); err != nil {
		return nil, err
	}
	if payload.Index == nil {
		payload.Index = []domain.LocationIndex{}
	}

	c.mu.Lock()
	c.locations = payload.Index
	c.mu.Unlock()

	c.logger.Info("Locations loaded", zap.Int("count", len(payload.Index)))
	return payload.Index, nil
}

// Relations returns the /relation index.
func (c *Catalog) Relations(ctx context.Context) ([]domain.Relation, error) {
	c.mu.RLock()
	cached := c.relations
	c.mu.RUnlock()
	if len(cached) > 0 {
		return cached, nil
	}

	var payload struct {
		Index []domain.Relation `json:"index"`
	}
	if err := c.fetch(ctx, "/relation", &payload); err != nil {
		return nil, err
	}
	if payload.Index == nil {
		payload.Index = []domain.Relation{}
	}

	c.mu.Lock()
	c.relations = payload.Index
	c.mu.Unlock()

	c.logger.Info("Relations loaded", zap.Int("count", len(payload.Index)))
	return payload.Index, nil
}

// RelationFor returns the cached relation for id when the index is loaded,
// falling back to a single upstream lookup.
func (c *Catalog) RelationFor(ctx context.Context, id int) (*domain.Relation, error) {
	c.mu.RLock()
	for i := range c.relations {
		if c.relations[i].ID == id {
			rel := c.relations[i]
			c.mu.RUnlock()
			return &rel, nil
		}
	}
	c.mu.RUnlock()
	return c.Relation(ctx, id)
}

// Reset drops the cached indexes.
func (c *Catalog) Reset() {
	c.mu.Lock()
	c.artists = nil
	c.locations = nil
	c.relations = nil
	c.mu.Unlock()
}

func (c *Catalog) fetch(ctx context.Context, path string, dest any) error {
	body, err := c.requester.DoRequest(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.NewServiceError("failed to decode upstream response", "groupie", path, err)
	}
	return nil
}
