package geo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/spotmyartist/internal/domain"
	apperrors "github.com/kapu/spotmyartist/pkg/errors"
	"go.uber.org/zap"
)

type geocodeCall struct {
	query      string
	restricted bool
}

type fakeGeocoder struct {
	mu     sync.Mutex
	calls  []geocodeCall
	delay  time.Duration
	answer func(call geocodeCall, n int) (domain.Coordinate, error)
}

func (f *fakeGeocoder) Search(_ context.Context, query string, restricted bool) (domain.Coordinate, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	call := geocodeCall{query: query, restricted: restricted}
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	if f.answer == nil {
		return domain.Coordinate{}, ErrNoResult
	}
	return f.answer(call, n)
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeShared struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeShared() *fakeShared {
	return &fakeShared{items: make(map[string][]byte)}
}

func (f *fakeShared) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeShared) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.items[key] = raw
	f.mu.Unlock()
	return nil
}

func mustGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	g, err := LoadGazetteer()
	if err != nil {
		t.Fatalf("LoadGazetteer() error = %v", err)
	}
	return g
}

func newTestResolver(t *testing.T, geocoder Geocoder, shared SharedCache) *Resolver {
	t.Helper()
	return NewResolver(mustGazetteer(t), geocoder, shared, ResolverConfig{}, zap.NewNop())
}

func coordOf(t *testing.T, g *Gazetteer, key string) domain.Coordinate {
	t.Helper()
	c, ok := g.Lookup(key)
	if !ok {
		t.Fatalf("gazetteer has no %q", key)
	}
	return c
}

func TestResolveGazetteerEntriesWithoutNetwork(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newTestResolver(t, geo, nil)

	r.gazetteer.Each(func(e Entry) bool {
		loc, err := r.Resolve(context.Background(), e.Name)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", e.Name, err)
			return true
		}
		if loc.Coordinate != e.Coordinate {
			t.Errorf("Resolve(%q) = %+v, want %+v", e.Name, loc.Coordinate, e.Coordinate)
		}
		if loc.Source != domain.SourceGazetteer {
			t.Errorf("Resolve(%q) source = %s", e.Name, loc.Source)
		}
		return true
	})

	if n := geo.callCount(); n != 0 {
		t.Fatalf("gazetteer hits must not call the geocoder, got %d calls", n)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	r := newTestResolver(t, &fakeGeocoder{}, nil)

	a, errA := r.Resolve(context.Background(), "Paris, France")
	b, errB := r.Resolve(context.Background(), "paris")
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors %v %v", errA, errB)
	}
	if a.Coordinate != b.Coordinate {
		t.Fatalf("%+v != %+v", a.Coordinate, b.Coordinate)
	}
	if a.Name != "Paris, France" {
		t.Fatalf("original name should be kept, got %q", a.Name)
	}
}

func TestResolveBlankInput(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newTestResolver(t, geo, nil)

	for _, in := range []string{"", "   ", "\t\n", "!!!"} {
		if _, err := r.Resolve(context.Background(), in); !errors.Is(err, ErrNotFound) {
			t.Errorf("Resolve(%q) error = %v, want ErrNotFound", in, err)
		}
	}
	if n := geo.callCount(); n != 0 {
		t.Fatalf("blank input must not reach the geocoder, got %d calls", n)
	}
	if r.MemoSize() != 0 {
		t.Fatalf("blank input must not be memoized")
	}
}

func TestResolveStages(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newTestResolver(t, geo, nil)
	g := r.gazetteer

	cases := []struct {
		in     string
		want   domain.Coordinate
		source domain.LocationSource
	}{
		{"San Francisco-CA", coordOf(t, g, "san francisco"), domain.SourceVariant},
		{"Lyon (France)", coordOf(t, g, "lyon"), domain.SourceVariant},
		{"New York/USA", coordOf(t, g, "new york"), domain.SourceVariant},
		{"aarhus-denmark", coordOf(t, g, "aarhus"), domain.SourceVariant},
		{"Hollywood Bowl, Los Angeles", coordOf(t, g, "los angeles"), domain.SourceRule},
		{"Roskilde Festival Denmark", coordOf(t, g, "denmark"), domain.SourceRule},
		{"Copenhagen Jazz Festival", coordOf(t, g, "copenhagen"), domain.SourceRule},
		{"Christchurch New Zealand", domain.Coordinate{Lat: -41.2865, Lng: 174.7762}, domain.SourceRule},
		{"Minsk Bielorussie", coordOf(t, g, "belarus"), domain.SourceRule},
		{"Manchester Arena", coordOf(t, g, "manchester"), domain.SourceFuzzy},
		{"Manchest", coordOf(t, g, "manchester"), domain.SourceFuzzy},
		{"Amsterdam Ziggo Dome", coordOf(t, g, "amsterdam"), domain.SourceFuzzy},
	}

	for _, tc := range cases {
		loc, err := r.Resolve(context.Background(), tc.in)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tc.in, err)
			continue
		}
		if loc.Coordinate != tc.want || loc.Source != tc.source {
			t.Errorf("Resolve(%q) = %+v via %s, want %+v via %s", tc.in, loc.Coordinate, loc.Source, tc.want, tc.source)
		}
	}

	if n := geo.callCount(); n != 0 {
		t.Fatalf("offline stages must not call the geocoder, got %d", n)
	}
}

func TestResolveGeocoderRestrictedHit(t *testing.T) {
	want := domain.Coordinate{Lat: 62.0107, Lng: -6.7741}
	geo := &fakeGeocoder{answer: func(geocodeCall, int) (domain.Coordinate, error) { return want, nil }}
	r := newTestResolver(t, geo, nil)

	loc, err := r.Resolve(context.Background(), "Tórshavn")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if loc.Coordinate != want || loc.Source != domain.SourceGeocoder {
		t.Fatalf("unexpected location %+v", loc)
	}
	if len(geo.calls) != 1 || !geo.calls[0].restricted || geo.calls[0].query != "torshavn" {
		t.Fatalf("unexpected calls %+v", geo.calls)
	}

	again, err := r.Resolve(context.Background(), "TORSHAVN")
	if err != nil || again.Coordinate != want {
		t.Fatalf("second resolve = %+v, %v", again, err)
	}
	if n := geo.callCount(); n != 1 {
		t.Fatalf("memoized result should not call the geocoder again, got %d calls", n)
	}
}

func TestResolveRetriesUnrestricted(t *testing.T) {
	want := domain.Coordinate{Lat: 47.8864, Lng: 106.9057}
	geo := &fakeGeocoder{answer: func(call geocodeCall, _ int) (domain.Coordinate, error) {
		if call.restricted {
			return domain.Coordinate{}, ErrNoResult
		}
		return want, nil
	}}
	r := newTestResolver(t, geo, nil)

	loc, err := r.Resolve(context.Background(), "Ulaanbaatar")
	if err != nil || loc.Coordinate != want {
		t.Fatalf("Resolve = %+v, %v", loc, err)
	}
	if len(geo.calls) != 2 || geo.calls[1].restricted {
		t.Fatalf("expected restricted then unrestricted call, got %+v", geo.calls)
	}
}

func TestResolveRetriesUnrestrictedOnClientStatus(t *testing.T) {
	want := domain.Coordinate{Lat: 47.8864, Lng: 106.9057}
	geo := &fakeGeocoder{answer: func(call geocodeCall, _ int) (domain.Coordinate, error) {
		if call.restricted {
			return domain.Coordinate{}, apperrors.NewAPIError("bad request", 400, nil)
		}
		return want, nil
	}}
	r := newTestResolver(t, geo, nil)

	if _, err := r.Resolve(context.Background(), "Ulaanbaatar"); err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if n := geo.callCount(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestResolveDefinitiveMissIsMemoized(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newTestResolver(t, geo, nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "Xyzzyville"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("attempt %d: error = %v, want ErrNotFound", i, err)
		}
	}
	if n := geo.callCount(); n != 2 {
		t.Fatalf("both stages once, then memo: want 2 calls, got %d", n)
	}
}

func TestResolveClientStatusThenNoResultIsMemoized(t *testing.T) {
	geo := &fakeGeocoder{answer: func(call geocodeCall, _ int) (domain.Coordinate, error) {
		if call.restricted {
			return domain.Coordinate{}, apperrors.NewAPIError("bad request", 400, nil)
		}
		return domain.Coordinate{}, ErrNoResult
	}}
	r := newTestResolver(t, geo, nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "Xyzzyville"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("attempt %d: error = %v, want ErrNotFound", i, err)
		}
	}
	if n := geo.callCount(); n != 2 {
		t.Fatalf("client error then no result is final: want 2 calls, got %d", n)
	}
}

func TestResolveTransientFailureIsNotMemoized(t *testing.T) {
	want := domain.Coordinate{Lat: 77.4670, Lng: -69.2285}
	geo := &fakeGeocoder{answer: func(_ geocodeCall, n int) (domain.Coordinate, error) {
		if n == 1 {
			return domain.Coordinate{}, context.DeadlineExceeded
		}
		return want, nil
	}}
	r := newTestResolver(t, geo, nil)

	if _, err := r.Resolve(context.Background(), "Qaanaaq"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("first attempt error = %v, want ErrNotFound", err)
	}
	if n := geo.callCount(); n != 1 {
		t.Fatalf("timeout must not trigger the unrestricted retry, got %d calls", n)
	}

	loc, err := r.Resolve(context.Background(), "Qaanaaq")
	if err != nil || loc.Coordinate != want {
		t.Fatalf("second attempt = %+v, %v", loc, err)
	}
}

func TestResolveConcurrentCallersShareOneLookup(t *testing.T) {
	want := domain.Coordinate{Lat: 64.1814, Lng: -51.6941}
	geo := &fakeGeocoder{
		delay:  30 * time.Millisecond,
		answer: func(geocodeCall, int) (domain.Coordinate, error) { return want, nil },
	}
	r := newTestResolver(t, geo, nil)

	var wg sync.WaitGroup
	results := make([]domain.Coordinate, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := r.Resolve(context.Background(), "Nuuk")
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			results[i] = loc.Coordinate
		}(i)
	}
	wg.Wait()

	for i, c := range results {
		if c != want {
			t.Fatalf("goroutine %d got %+v", i, c)
		}
	}
	if n := geo.callCount(); n != 1 {
		t.Fatalf("want a single geocoder call, got %d", n)
	}
}

// slowGeocoder honors its ctx, unlike fakeGeocoder.
type slowGeocoder struct {
	delay time.Duration
	want  domain.Coordinate
	calls atomic.Int32
}

func (g *slowGeocoder) Search(ctx context.Context, _ string, _ bool) (domain.Coordinate, error) {
	g.calls.Add(1)
	select {
	case <-time.After(g.delay):
		return g.want, nil
	case <-ctx.Done():
		return domain.Coordinate{}, ctx.Err()
	}
}

func TestResolveSharedLookupOutlivesStartingCaller(t *testing.T) {
	geo := &slowGeocoder{delay: 80 * time.Millisecond, want: domain.Coordinate{Lat: 64.1814, Lng: -51.6941}}
	r := newTestResolver(t, geo, nil)

	starterCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	starterErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(starterCtx, "Nuuk")
		starterErr <- err
	}()
	time.Sleep(5 * time.Millisecond)

	loc, err := r.Resolve(context.Background(), "Nuuk")
	if err != nil || loc.Coordinate != geo.want {
		t.Fatalf("joined caller = %+v, %v", loc, err)
	}
	if err := <-starterErr; !errors.Is(err, ErrNotFound) {
		t.Fatalf("starting caller error = %v, want ErrNotFound after its deadline", err)
	}
	if n := geo.calls.Load(); n != 1 {
		t.Fatalf("want one shared lookup, got %d", n)
	}

	if _, err := r.Resolve(context.Background(), "Nuuk"); err != nil {
		t.Fatalf("memoized Resolve error = %v", err)
	}
	if n := geo.calls.Load(); n != 1 {
		t.Fatalf("result should be memoized, got %d lookups", n)
	}
}

func TestLookupBudgetCoversBothAttempts(t *testing.T) {
	if got := LookupBudget(2 * time.Second); got != 5*time.Second {
		t.Fatalf("LookupBudget(2s) = %v, want 5s", got)
	}
	if got := LookupBudget(0); got != 3*time.Second {
		t.Fatalf("LookupBudget(0) = %v, want 3s", got)
	}
}

func TestResolveUsesSharedCache(t *testing.T) {
	want := domain.Coordinate{Lat: 62.0107, Lng: -6.7741}
	shared := newFakeShared()

	warm := &fakeGeocoder{answer: func(geocodeCall, int) (domain.Coordinate, error) { return want, nil }}
	if _, err := newTestResolver(t, warm, shared).Resolve(context.Background(), "Tórshavn"); err != nil {
		t.Fatalf("warm-up resolve: %v", err)
	}
	if _, ok := shared.items["geo:torshavn"]; !ok {
		t.Fatalf("hit was not written to the shared cache")
	}

	cold := &fakeGeocoder{answer: func(geocodeCall, int) (domain.Coordinate, error) {
		return domain.Coordinate{}, errors.New("should not be called")
	}}
	loc, err := newTestResolver(t, cold, shared).Resolve(context.Background(), "torshavn")
	if err != nil || loc.Coordinate != want {
		t.Fatalf("shared lookup = %+v, %v", loc, err)
	}
	if n := cold.callCount(); n != 0 {
		t.Fatalf("shared hit should skip the geocoder, got %d calls", n)
	}
}

func TestResolveWithoutGeocoder(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	if _, err := r.Resolve(context.Background(), "Xyzzyville"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if r.MemoSize() != 1 {
		t.Fatalf("offline miss should be memoized")
	}

	r.Reset()
	if r.MemoSize() != 0 {
		t.Fatalf("Reset should clear the memo")
	}
}
