package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/spotmyartist/internal/constants"
	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/util"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

// ScraperService reads the lead paragraph of an encyclopedia article.
type ScraperService struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewScraperService(httpClient *http.Client, baseURL string, logger *zap.Logger) *ScraperService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.APIConfig.ScrapeTimeout}
	}
	if baseURL == "" {
		baseURL = constants.APIConfig.WikiBaseURL
	}
	return &ScraperService{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// ArticleURL maps a free-text title to its article address.
func (s *ScraperService) ArticleURL(title string) string {
	slug := strings.Join(strings.Fields(title), "_")
	return s.baseURL + "/wiki/" + url.PathEscape(slug)
}

// Summary fetches the article for query and returns its heading and first
// non-empty paragraph.
func (s *ScraperService) Summary(ctx context.Context, query string) (domain.WikiSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.WikiSummary{}, apperrors.NewValidationError("query is required", "q", query)
	}

	articleURL := s.ArticleURL(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return domain.WikiSummary{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; spotmyartist/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.WikiSummary{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.WikiSummary{}, apperrors.NewNotFoundError("article", query, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.WikiSummary{}, apperrors.NewAPIError(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), resp.StatusCode, map[string]any{
			"url": articleURL,
		})
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.WikiSummary{}, apperrors.NewServiceError("failed to parse article", "wiki", "summary", err)
	}

	title := strings.TrimSpace(doc.Find("#firstHeading").First().Text())
	if title == "" {
		title = query
	}

	var summary string
	doc.Find("#mw-content-text p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		p.Find("sup.reference").Remove()
		text := strings.Join(strings.Fields(p.Text()), " ")
		if text == "" {
			return true
		}
		summary = text
		return false
	})
	if summary == "" {
		return domain.WikiSummary{}, apperrors.NewNotFoundError("article summary", query, nil)
	}

	s.logger.Debug("Article summary scraped", zap.String("title", title), zap.String("url", articleURL))

	return domain.WikiSummary{
		Title:   title,
		Summary: util.TruncateString(summary, constants.ViewConfig.WikiSummaryRunes),
		URL:     articleURL,
	}, nil
}
