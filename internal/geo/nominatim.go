package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrNoResult means the geocoder answered but knew no such place.
	ErrNoResult = errors.New("geocoder returned no result")
	// ErrGeocoderUnavailable is returned while the circuit breaker is open.
	ErrGeocoderUnavailable = errors.New("geocoder temporarily unavailable")
	errMalformedResponse   = errors.New("malformed geocoder response")
)

const maxGeocoderBody = 1 << 20

type NominatimConfig struct {
	BaseURL      string
	UserAgent    string
	CountryCodes []string
	Timeout      time.Duration
}

// NominatimClient queries an OpenStreetMap Nominatim /search endpoint. Every
// request carries its own timeout; repeated upstream failures open the breaker.
type NominatimClient struct {
	httpClient *http.Client
	cfg        NominatimConfig
	breaker    *util.CircuitBreaker
	logger     *zap.Logger
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewNominatimClient(httpClient *http.Client, cfg NominatimConfig, breaker *util.CircuitBreaker, logger *zap.Logger) *NominatimClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.GeocoderConfig.RequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.GeocoderConfig.UserAgent
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if breaker == nil {
		breaker = util.NewCircuitBreaker("nominatim",
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		)
	}
	return &NominatimClient{
		httpClient: httpClient,
		cfg:        cfg,
		breaker:    breaker,
		logger:     logger,
	}
}

// Search returns the first match for query.
func (c *NominatimClient) Search(ctx context.Context, query string, restricted bool) (domain.Coordinate, error) {
	if !c.breaker.CanExecute() {
		return domain.Coordinate{}, ErrGeocoderUnavailable
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if restricted && len(c.cfg.CountryCodes) > 0 {
		params.Set("countrycodes", strings.Join(c.cfg.CountryCodes, ","))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure(0)
		return domain.Coordinate{}, fmt.Errorf("geocoder request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.breaker.RecordFailure(constants.CircuitBreakerConfig.RateLimitTimeout)
		return domain.Coordinate{}, c.statusError(resp.StatusCode, query)
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure(0)
		return domain.Coordinate{}, c.statusError(resp.StatusCode, query)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.breaker.RecordSuccess()
		return domain.Coordinate{}, c.statusError(resp.StatusCode, query)
	}
	c.breaker.RecordSuccess()

	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxGeocoderBody)).Decode(&places); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	if len(places) == 0 {
		return domain.Coordinate{}, ErrNoResult
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(places[0].Lon, 64)
	coord := domain.Coordinate{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || !coord.Valid() {
		return domain.Coordinate{}, fmt.Errorf("%w: bad coordinates %q,%q", errMalformedResponse, places[0].Lat, places[0].Lon)
	}

	c.logger.Debug("Geocoded place",
		zap.String("query", query),
		zap.Bool("restricted", restricted),
		zap.String("match", places[0].DisplayName),
	)
	return coord, nil
}

// BreakerStatus exposes the breaker for health reporting.
func (c *NominatimClient) BreakerStatus() util.CircuitBreakerStatus {
	return c.breaker.GetStatus()
}

func (c *NominatimClient) statusError(status int, query string) error {
	return apperrors.NewAPIError(fmt.Sprintf("geocoder returned status %d", status), status, map[string]any{
		"query": query,
	})
}
