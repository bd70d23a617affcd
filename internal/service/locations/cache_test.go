package locations

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/spotmyartist/internal/domain"
	"go.uber.org/zap"
)

type fakeSource struct {
	concertCalls atomic.Int32
	indexCalls   atomic.Int32
	delay        time.Duration
	fail         atomic.Bool
	concerts     map[int][]domain.ConcertInfo
	index        []domain.LocationIndex
}

func (f *fakeSource) ConcertInfo(_ context.Context, id int) ([]domain.ConcertInfo, error) {
	f.concertCalls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() {
		return nil, errors.New("relation lookup failed")
	}
	return f.concerts[id], nil
}

func (f *fakeSource) Locations(context.Context) ([]domain.LocationIndex, error) {
	f.indexCalls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("upstream down")
	}
	return f.index, nil
}

func concert(place string, dates ...string) domain.ConcertInfo {
	return domain.ConcertInfo{Location: place, Dates: dates}
}

func TestGetLoadsOnceThenServesFromMemory(t *testing.T) {
	src := &fakeSource{concerts: map[int][]domain.ConcertInfo{
		1: {concert("paris-france", "01-01-2020"), concert("Paris-France", "02-01-2020"), concert("london-uk", "05-01-2020")},
	}}
	c := NewCache(src, zap.NewNop())

	first, err := c.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	want := []domain.ConcertInfo{
		concert("paris-france", "01-01-2020", "02-01-2020"),
		concert("london-uk", "05-01-2020"),
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("Get = %+v, want %+v", first, want)
	}

	second, err := c.Get(context.Background(), 1)
	if err != nil || !reflect.DeepEqual(first, second) {
		t.Fatalf("second Get = %+v, %v", second, err)
	}
	if src.concertCalls.Load() != 1 {
		t.Fatalf("want 1 upstream call, got %d", src.concertCalls.Load())
	}
	if places := c.Snapshot()[1]; !reflect.DeepEqual(places, []string{"paris-france", "london-uk"}) {
		t.Fatalf("places = %v", places)
	}
	if c.BulkLoaded() {
		t.Fatalf("a single artist load must not count as a bulk load")
	}
}

func TestConcurrentFirstRequestsShareOneLoad(t *testing.T) {
	src := &fakeSource{
		delay:    30 * time.Millisecond,
		concerts: map[int][]domain.ConcertInfo{7: {concert("osaka-japan", "28-01-2020")}},
	}
	c := NewCache(src, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), 7); err != nil {
				t.Errorf("Get error = %v", err)
			}
		}()
	}
	wg.Wait()

	if src.concertCalls.Load() != 1 {
		t.Fatalf("concurrent loads should coalesce, got %d calls", src.concertCalls.Load())
	}
}

func TestFailedLoadIsNotCached(t *testing.T) {
	src := &fakeSource{concerts: map[int][]domain.ConcertInfo{3: {concert("berlin-germany", "12-03-2019")}}}
	src.fail.Store(true)
	c := NewCache(src, zap.NewNop())

	if concerts, err := c.Get(context.Background(), 3); err == nil {
		t.Fatalf("relation failure should surface, got %+v", concerts)
	}
	if c.Len() != 0 {
		t.Fatalf("failed load left %d entries", c.Len())
	}

	src.fail.Store(false)
	concerts, err := c.Get(context.Background(), 3)
	if err != nil || len(concerts) != 1 || concerts[0].Location != "berlin-germany" {
		t.Fatalf("retry Get = %+v, %v", concerts, err)
	}
	if src.concertCalls.Load() != 2 {
		t.Fatalf("want 2 calls, got %d", src.concertCalls.Load())
	}
}

func TestEmptyConcertListIsCached(t *testing.T) {
	src := &fakeSource{concerts: map[int][]domain.ConcertInfo{}}
	c := NewCache(src, zap.NewNop())

	for i := 0; i < 2; i++ {
		concerts, err := c.Get(context.Background(), 4)
		if err != nil || concerts == nil || len(concerts) != 0 {
			t.Fatalf("Get = %#v, %v", concerts, err)
		}
	}
	if src.concertCalls.Load() != 1 {
		t.Fatalf("an artist without concerts should be loaded once, got %d", src.concertCalls.Load())
	}
}

func TestLoadAllKeepsExistingEntries(t *testing.T) {
	src := &fakeSource{
		concerts: map[int][]domain.ConcertInfo{1: {concert("paris-france", "01-01-2020")}},
		index: []domain.LocationIndex{
			{ID: 1, Locations: []string{"lyon-france"}},
			{ID: 2, Locations: []string{"north_carolina-usa", "north_carolina-usa", "georgia-usa"}},
		},
	}
	c := NewCache(src, zap.NewNop())

	if _, err := c.Get(context.Background(), 1); err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if err := c.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll error = %v", err)
	}
	if !c.BulkLoaded() {
		t.Fatalf("BulkLoaded should be set after LoadAll")
	}

	snap := c.Snapshot()
	if !reflect.DeepEqual(snap[1], []string{"paris-france"}) {
		t.Fatalf("existing entry overwritten: %v", snap[1])
	}
	if !reflect.DeepEqual(snap[2], []string{"north_carolina-usa", "georgia-usa"}) {
		t.Fatalf("bulk entry = %v", snap[2])
	}

	c.Reset()
	if c.Len() != 0 || c.BulkLoaded() {
		t.Fatalf("Reset left %d entries, bulk=%v", c.Len(), c.BulkLoaded())
	}
	if _, err := c.Get(context.Background(), 1); err != nil {
		t.Fatalf("Get after Reset error = %v", err)
	}
	if src.concertCalls.Load() != 2 {
		t.Fatalf("Reset should drop concerts too, got %d calls", src.concertCalls.Load())
	}
}

func TestLoadAllPropagatesErrors(t *testing.T) {
	src := &fakeSource{}
	src.fail.Store(true)
	c := NewCache(src, zap.NewNop())

	if err := c.LoadAll(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if c.BulkLoaded() {
		t.Fatalf("failed LoadAll must not mark the cache loaded")
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"São Paulo", "sao paulo", "  ", "Zürich", "zurich", "Lima"})
	want := []string{"São Paulo", "Zürich", "Lima"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedupe = %v, want %v", got, want)
	}
}
