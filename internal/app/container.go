package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kapu/spotmyartist/internal/config"
	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/geo"
	"github.com/kapu/spotmyartist/internal/server"
	"github.com/kapu/spotmyartist/internal/service/albums"
	"github.com/kapu/spotmyartist/internal/service/cache"
	"github.com/kapu/spotmyartist/internal/service/discogs"
	"github.com/kapu/spotmyartist/internal/service/groupie"
	"github.com/kapu/spotmyartist/internal/service/locations"
	"github.com/kapu/spotmyartist/internal/service/mapview"
	"github.com/kapu/spotmyartist/internal/service/matcher"
	"github.com/kapu/spotmyartist/internal/service/wiki"
	"github.com/kapu/spotmyartist/internal/session"
	"go.uber.org/zap"
)

// Container bundles the assembled session and the HTTP server built on it.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Session *session.Session
	Server  *server.Server
}

// Build assembles all services. The shared Redis tier is optional: when it is
// disabled or unreachable the resolver runs on its in-process memo only.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	breakers := make(map[string]session.BreakerReporter)

	// Shared geocode cache
	var (
		shared      geo.SharedCache
		cachePinger session.Pinger
	)
	if cfg.Redis.Enabled {
		cacheSvc, cacheErr := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger.Named("cache"))
		if cacheErr != nil {
			logger.Warn("Shared geocode cache unavailable, using in-process memo only", zap.Error(cacheErr))
		} else {
			shared = cacheSvc
			cachePinger = cacheSvc
			closers = append(closers, cacheSvc.Close)
		}
	}

	// Location resolver
	gazetteer, err := geo.LoadGazetteer()
	if err != nil {
		return nil, fmt.Errorf("failed to load gazetteer: %w", err)
	}

	var geocoder geo.Geocoder
	if !cfg.Geocoder.Disabled {
		nominatim := geo.NewNominatimClient(&http.Client{}, geo.NominatimConfig{
			BaseURL:      cfg.Geocoder.BaseURL,
			UserAgent:    cfg.Geocoder.UserAgent,
			CountryCodes: cfg.Geocoder.CountryCodes,
			Timeout:      cfg.Geocoder.Timeout,
		}, nil, logger.Named("nominatim"))
		geocoder = nominatim
		breakers["geocoder"] = nominatim
	}

	lookupBudget := geo.LookupBudget(cfg.Geocoder.Timeout)
	resolver := geo.NewResolver(gazetteer, geocoder, shared, geo.ResolverConfig{
		HitTTL:        cfg.Redis.TTL,
		LookupTimeout: lookupBudget,
	}, logger.Named("resolver"))
	logger.Info("Location resolver ready",
		zap.Int("gazetteer_entries", gazetteer.Len()),
		zap.Bool("geocoder", geocoder != nil),
		zap.Bool("shared_cache", shared != nil),
		zap.Duration("lookup_budget", lookupBudget),
	)

	// Upstream catalog
	groupieClient := groupie.NewClient(&http.Client{Timeout: cfg.Groupie.Timeout}, groupie.ClientConfig{
		BaseURL:     cfg.Groupie.BaseURL,
		MaxAttempts: constants.RetryConfig.MaxAttempts,
		BaseDelay:   constants.RetryConfig.BaseDelay,
		Jitter:      constants.RetryConfig.Jitter,
	}, logger.Named("groupie"))
	breakers["groupie"] = groupieClient
	catalog := groupie.NewCatalog(groupieClient, logger.Named("catalog"))

	// Search
	var fallback matcher.ExternalSearcher
	discogsClient := discogs.NewClient(nil, cfg.Discogs.BaseURL, cfg.Discogs.Token, logger.Named("discogs"))
	if discogsClient.Enabled() {
		fallback = discogsClient
	} else {
		logger.Info("DISCOGS_TOKEN not set, external search limited to the catalog")
	}

	sess, err := session.New(&session.Dependencies{
		Logger:    logger.Named("session"),
		Catalog:   catalog,
		Resolver:  resolver,
		Locations: locations.NewCache(catalog, logger.Named("locations")),
		Matcher:   matcher.NewArtistMatcher(catalog, logger.Named("matcher")),
		External:  matcher.NewExternalSearch(catalog, catalog, fallback, logger.Named("external")),
		Maps: mapview.NewBuilder(resolver, mapview.Config{
			StepDelay:     cfg.Map.StepDelay,
			LookupTimeout: lookupBudget,
			OverviewPool:  constants.MapConfig.OverviewPool,
		}, logger.Named("map")),
		Wiki:          wiki.NewScraperService(nil, cfg.Wiki.BaseURL, logger.Named("wiki")),
		Albums:        albums.NewLoader(cfg.Albums.File, logger.Named("albums")),
		DebounceDelay: cfg.Filter.DebounceDelay,
		Closer:        closeAll(closers),
		Breakers:      breakers,
		SharedCache:   cachePinger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Init(ctx)

	return &Container{
		Config:  cfg,
		Logger:  logger,
		Session: sess,
		Server:  server.New(sess, cfg.Server, logger.Named("http")),
	}, nil
}

func closeAll(closers []func() error) func() error {
	return func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
