package session

import (
	"context"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/util"
	"go.uber.org/zap"
)

// BreakerReporter is an upstream client guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerStatus() util.CircuitBreakerStatus
}

// Pinger is a backing store that can be checked for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Health is the service state reported by /health. Status is degraded while a
// breaker is open or the shared cache does not answer; the service keeps serving
// either way.
type Health struct {
	Status          string                               `json:"status"`
	Breakers        map[string]util.CircuitBreakerStatus `json:"breakers,omitempty"`
	SharedCache     string                               `json:"sharedCache,omitempty"`
	LiveConnections int                                  `json:"liveConnections"`
	GeocodeMemo     int                                  `json:"geocodeMemo"`
	CachedArtists   int                                  `json:"cachedArtists"`
}

func (s *Session) Health(ctx context.Context) Health {
	h := Health{
		Status:          HealthOK,
		LiveConnections: s.ActiveDebouncers(),
		GeocodeMemo:     s.Resolver.MemoSize(),
		CachedArtists:   s.Locations.Len(),
	}

	if len(s.breakers) > 0 {
		h.Breakers = make(map[string]util.CircuitBreakerStatus, len(s.breakers))
		for name, b := range s.breakers {
			status := b.BreakerStatus()
			h.Breakers[name] = status
			if status.State == util.CircuitStateOpen {
				h.Status = HealthDegraded
			}
		}
	}

	if s.sharedCache != nil {
		pingCtx, cancel := context.WithTimeout(ctx, constants.RedisConfig.PingTimeout)
		defer cancel()
		if err := s.sharedCache.Ping(pingCtx); err != nil {
			s.logger.Warn("Shared cache ping failed", zap.Error(err))
			h.SharedCache = "unreachable"
			h.Status = HealthDegraded
		} else {
			h.SharedCache = HealthOK
		}
	}

	return h
}
