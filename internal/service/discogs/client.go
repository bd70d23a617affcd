package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoToken is returned when no API token is configured.
var ErrNoToken = errors.New("discogs token missing")

const userAgent = "spotmyartist/1.0 +https://github.com/kapu/spotmyartist"

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

type searchResponse struct {
	Results []struct {
		Title       string `json:"title"`
		ResourceURL string `json:"resource_url"`
		Thumb       string `json:"thumb"`
	} `json:"results"`
}

func NewClient(httpClient *http.Client, baseURL, token string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.APIConfig.ScrapeTimeout}
	}
	if baseURL == "" {
		baseURL = constants.APIConfig.DiscogsBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

func (c *Client) Enabled() bool {
	return c.token != ""
}

// SearchArtists queries the Discogs database for artists named like q.
func (c *Client) SearchArtists(ctx context.Context, q string) ([]domain.ExternalArtist, error) {
	if !c.Enabled() {
		return nil, ErrNoToken
	}

	params := url.Values{}
	params.Set("type", "artist")
	params.Set("q", q)
	reqURL := c.baseURL + "/database/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Discogs token="+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperrors.NewAPIError(fmt.Sprintf("discogs status %d", resp.StatusCode), resp.StatusCode, map[string]any{
			"query": q,
			"body":  util.TruncateString(string(body), 200),
		})
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewServiceError("failed to decode discogs response", "discogs", "search", err)
	}

	out := make([]domain.ExternalArtist, 0, len(payload.Results))
	for _, r := range payload.Results {
		a := domain.ExternalArtist{
			Name:   r.Title,
			URL:    r.ResourceURL,
			Source: "discogs",
		}
		if r.Thumb != "" {
			a.Images = []domain.ExternalImage{{URL: r.Thumb}}
		}
		out = append(out, a)
	}

	c.logger.Debug("Discogs search", zap.String("query", q), zap.Int("results", len(out)))
	return out, nil
}
