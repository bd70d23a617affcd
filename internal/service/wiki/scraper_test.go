package wiki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

const articleHTML = `<html><body>
<h1 id="firstHeading">Pink Floyd</h1>
<div id="mw-content-text">
  <p class="mw-empty-elt">
  </p>
  <p><b>Pink Floyd</b> were an English rock band formed in London in 1965.<sup class="reference">[1]</sup> Gaining a following.</p>
  <p>Second paragraph.</p>
</div>
</body></html>`

func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wiki/Pink_Floyd":
			_, _ = w.Write([]byte(articleHTML))
		case "/wiki/Long":
			_, _ = w.Write([]byte(`<div id="mw-content-text"><p>` + strings.Repeat("a", 1000) + `</p></div>`))
		case "/wiki/Empty":
			_, _ = w.Write([]byte(`<h1 id="firstHeading">Empty</h1><div id="mw-content-text"></div>`))
		case "/wiki/Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSummaryTakesFirstParagraph(t *testing.T) {
	srv := newWikiServer(t)
	defer srv.Close()

	s := NewScraperService(srv.Client(), srv.URL, zap.NewNop())
	got, err := s.Summary(context.Background(), "  Pink   Floyd ")
	if err != nil {
		t.Fatalf("Summary error = %v", err)
	}
	if got.Title != "Pink Floyd" {
		t.Fatalf("Title = %q", got.Title)
	}
	want := "Pink Floyd were an English rock band formed in London in 1965. Gaining a following."
	if got.Summary != want {
		t.Fatalf("Summary = %q, want %q", got.Summary, want)
	}
	if got.URL != srv.URL+"/wiki/Pink_Floyd" {
		t.Fatalf("URL = %q", got.URL)
	}
}

func TestSummaryTruncatesAndDefaultsTitle(t *testing.T) {
	srv := newWikiServer(t)
	defer srv.Close()

	s := NewScraperService(srv.Client(), srv.URL, zap.NewNop())
	got, err := s.Summary(context.Background(), "Long")
	if err != nil {
		t.Fatalf("Summary error = %v", err)
	}
	if got.Title != "Long" {
		t.Fatalf("Title should fall back to the query, got %q", got.Title)
	}
	if n := utf8.RuneCountInString(got.Summary); n > 603 {
		t.Fatalf("summary not truncated: %d runes", n)
	}
}

func TestSummaryErrors(t *testing.T) {
	srv := newWikiServer(t)
	defer srv.Close()
	s := NewScraperService(srv.Client(), srv.URL, zap.NewNop())

	var vErr *apperrors.ValidationError
	if _, err := s.Summary(context.Background(), "   "); !errors.As(err, &vErr) {
		t.Fatalf("blank query err = %v", err)
	}

	var nfErr *apperrors.NotFoundError
	if _, err := s.Summary(context.Background(), "Nobody"); !errors.As(err, &nfErr) {
		t.Fatalf("missing article err = %v", err)
	}
	if _, err := s.Summary(context.Background(), "Empty"); !errors.As(err, &nfErr) {
		t.Fatalf("article without paragraph err = %v", err)
	}

	var apiErr *apperrors.APIError
	if _, err := s.Summary(context.Background(), "Broken"); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("upstream failure err = %v", err)
	}
}

func TestArticleURL(t *testing.T) {
	s := NewScraperService(nil, "https://en.example.org/", zap.NewNop())
	if got := s.ArticleURL("AC/DC"); got != "https://en.example.org/wiki/AC%2FDC" {
		t.Fatalf("ArticleURL = %q", got)
	}
	if got := s.ArticleURL("Led  Zeppelin"); got != "https://en.example.org/wiki/Led_Zeppelin" {
		t.Fatalf("ArticleURL = %q", got)
	}
}
