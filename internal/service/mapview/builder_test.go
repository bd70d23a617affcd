package mapview

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/kapu/spotmyartist/internal/geo"
	"go.uber.org/zap"
)

type fakeResolver struct {
	mu       sync.Mutex
	known    map[string]domain.Coordinate
	calls    []string
	inflight int
	peak     int
	delay    time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, name string) (domain.Location, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Location{}, ctx.Err()
		}
	}

	c, ok := f.known[name]
	if !ok {
		return domain.Location{}, fmt.Errorf("%w: %q", geo.ErrNotFound, name)
	}
	return domain.Location{Name: name, Coordinate: c, Source: domain.SourceGazetteer}, nil
}

func newTestBuilder(r Resolver) (*Builder, *[]time.Duration) {
	b := NewBuilder(r, Config{StepDelay: 50 * time.Millisecond}, zap.NewNop())
	var waits []time.Duration
	b.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return b, &waits
}

func TestBuildIsolatesFailures(t *testing.T) {
	r := &fakeResolver{known: map[string]domain.Coordinate{
		"paris-france":   {Lat: 48.8566, Lng: 2.3522},
		"berlin-germany": {Lat: 52.52, Lng: 13.405},
	}}
	b, waits := newTestBuilder(r)

	res, err := b.Build(context.Background(), []Stop{
		{Place: "paris-france", Dates: []string{"01-01-2020"}},
		{Place: "atlantis-nowhere"},
		{Place: "berlin-germany"},
	})
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if len(res.Markers) != 2 || res.Markers[0].Place != "paris-france" || res.Markers[1].Place != "berlin-germany" {
		t.Fatalf("unexpected markers %+v", res.Markers)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "atlantis-nowhere" {
		t.Fatalf("Failed = %v", res.Failed)
	}
	if res.Bounds == nil || res.Bounds.North < 52.52-1e-9 || res.Bounds.South > 48.8566+1e-9 {
		t.Fatalf("bounds should cover the markers, got %+v", res.Bounds)
	}
	if res.Markers[0].Dates[0] != "01-01-2020" {
		t.Fatalf("dates should be carried to the marker")
	}

	want := []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("waits = %v, want %v", *waits, want)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Fatalf("waits = %v, want %v", *waits, want)
		}
	}

	if len(r.calls) != 3 || r.calls[1] != "atlantis-nowhere" {
		t.Fatalf("lookups should run in input order, got %v", r.calls)
	}
}

func TestBuildWithoutMarkersUsesDefaultView(t *testing.T) {
	b, _ := newTestBuilder(&fakeResolver{})

	res, err := b.Build(context.Background(), []Stop{{Place: "nowhere"}})
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if res.Bounds != nil || len(res.Markers) != 0 {
		t.Fatalf("no markers expected, got %+v", res)
	}
	if res.Center.Lat != 48.8566 || res.Center.Lng != 2.3522 || res.Zoom != 3 {
		t.Fatalf("default view = %+v zoom %d", res.Center, res.Zoom)
	}
}

func TestBuildLookupTimeoutOnlyDropsThatStop(t *testing.T) {
	r := &fakeResolver{
		known: map[string]domain.Coordinate{"slow": {Lat: 1, Lng: 1}},
		delay: 200 * time.Millisecond,
	}
	b := NewBuilder(r, Config{LookupTimeout: 20 * time.Millisecond}, zap.NewNop())

	res, err := b.Build(context.Background(), []Stop{{Place: "slow"}})
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("timed out lookup should be reported as failed, got %+v", res)
	}
}

func TestBuildStopsOnCanceledContext(t *testing.T) {
	b := NewBuilder(&fakeResolver{}, Config{StepDelay: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := b.Build(ctx, []Stop{{Place: "a"}, {Place: "b"}}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestBuildOverviewMergesAndBoundsConcurrency(t *testing.T) {
	r := &fakeResolver{
		delay: 10 * time.Millisecond,
		known: map[string]domain.Coordinate{
			"paris-france":     {Lat: 48.8566, Lng: 2.3522},
			"lyon-france":      {Lat: 45.764, Lng: 4.8357},
			"osaka-japan":      {Lat: 34.6937, Lng: 135.5023},
			"sydney-australia": {Lat: -33.8688, Lng: 151.2093},
		},
	}
	b := NewBuilder(r, Config{}, zap.NewNop())

	artists := []domain.Artist{{ID: 2, Name: "Queen"}, {ID: 1, Name: "PNL"}}
	locations := map[int][]string{
		1: {"paris-france", "lyon-france", "mars-space"},
		2: {"Paris-France", "osaka-japan", "sydney-australia"},
	}

	res, err := b.BuildOverview(context.Background(), artists, locations)
	if err != nil {
		t.Fatalf("BuildOverview error = %v", err)
	}
	if len(res.Markers) != 4 {
		t.Fatalf("want 4 markers, got %d", len(res.Markers))
	}
	paris := res.Markers[0]
	if paris.Place != "paris-france" || len(paris.Artists) != 2 || paris.Artists[0] != "PNL" || paris.Artists[1] != "Queen" {
		t.Fatalf("shared place should list both artists in id order, got %+v", paris)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "mars-space" {
		t.Fatalf("Failed = %v", res.Failed)
	}
	if r.peak > 2 {
		t.Fatalf("pool should cap concurrency at 2, saw %d", r.peak)
	}
	if len(r.calls) != 5 {
		t.Fatalf("each distinct place should be resolved once, got %v", r.calls)
	}
}

func TestStopsFromConcerts(t *testing.T) {
	stops := StopsFromConcerts([]domain.ConcertInfo{
		{Location: "paris-france", Dates: []string{"a"}},
		{Location: "", Dates: []string{"x"}},
		{Location: "Paris-France", Dates: []string{"b"}},
		{Location: "lyon-france", Dates: []string{"c"}},
	})
	if len(stops) != 2 || stops[0].Place != "paris-france" || len(stops[0].Dates) != 2 || stops[1].Place != "lyon-france" {
		t.Fatalf("unexpected stops %+v", stops)
	}
}
