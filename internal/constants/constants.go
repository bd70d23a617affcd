package constants

import "time"

var CacheTTL = struct {
	GeocodeHit  time.Duration
	GeocodeMiss time.Duration
	SearchMatch time.Duration
}{
	GeocodeHit:  7 * 24 * time.Hour, // shared tier only; the session memo never expires
	GeocodeMiss: 6 * time.Hour,
	SearchMatch: 5 * time.Minute,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
	PingTimeout  time.Duration
	KeyPrefix    string
}{
	ReadyTimeout: 5 * time.Second,
	PingTimeout:  time.Second,
	KeyPrefix:    "spotmyartist:",
}

var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Jitter:      250 * time.Millisecond,
}

var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	RateLimitTimeout time.Duration
}{
	FailureThreshold: 3,
	ResetTimeout:     30 * time.Second,
	RateLimitTimeout: 5 * time.Minute, // Nominatim asks for back-off on 429
}

var GeocoderConfig = struct {
	BaseURL        string
	RequestTimeout time.Duration
	LookupMargin   time.Duration
	UserAgent      string
	CountryCodes   []string
	MinQueryLength int
}{
	BaseURL:        "https://nominatim.openstreetmap.org",
	RequestTimeout: 1 * time.Second,
	LookupMargin:   time.Second,
	UserAgent:      "spotmyartist/1.0 (+https://github.com/kapu/spotmyartist)",
	CountryCodes: []string{
		"fr", "gb", "us", "ca", "de", "it", "es", "nl", "be", "ch",
		"dk", "se", "no", "fi", "is", "au", "nz", "jp", "br", "mx",
		"by", "pl", "cz", "sk", "hu", "ro", "si", "hr", "rs", "bg",
	},
	MinQueryLength: 3,
}

var MapConfig = struct {
	StepDelay     time.Duration
	DefaultLat    float64
	DefaultLng    float64
	DefaultZoom   int
	FitPadding    int
	OverviewPool  int
	MarkerRadius  int
	MarkerFill    string
	MarkerOutline string
}{
	StepDelay:     50 * time.Millisecond,
	DefaultLat:    48.8566,
	DefaultLng:    2.3522,
	DefaultZoom:   3,
	FitPadding:    50,
	OverviewPool:  2,
	MarkerRadius:  8,
	MarkerFill:    "#93C5FD",
	MarkerOutline: "#1E40AF",
}

var FilterConfig = struct {
	DebounceDelay time.Duration
}{
	DebounceDelay: 300 * time.Millisecond,
}

var APIConfig = struct {
	GroupieBaseURL string
	GroupieTimeout time.Duration
	DiscogsBaseURL string
	WikiBaseURL    string
	ScrapeTimeout  time.Duration
}{
	GroupieBaseURL: "https://groupietrackers.herokuapp.com/api",
	GroupieTimeout: 10 * time.Second,
	DiscogsBaseURL: "https://api.discogs.com",
	WikiBaseURL:    "https://en.wikipedia.org",
	ScrapeTimeout:  15 * time.Second,
}

var ViewConfig = struct {
	DefaultImage     string
	ImagesPerColumn  int
	CarouselColumns  int
	MaxSuggestions   int
	SuggestDistance  int
	WikiSummaryRunes int
}{
	DefaultImage:     "/static/default.jpg",
	ImagesPerColumn:  10,
	CarouselColumns:  3,
	MaxSuggestions:   3,
	SuggestDistance:  3,
	WikiSummaryRunes: 600,
}

var WebSocketConfig = struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}{
	WriteTimeout:   10 * time.Second,
	PongWait:       60 * time.Second,
	PingInterval:   50 * time.Second,
	MaxMessageSize: 4096,
}
