package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/example/rideboard/internal/geocode"
	"github.com/example/rideboard/internal/models"
	"github.com/example/rideboard/internal/store"
)

type fakeGeocoder struct {
	coord models.Coord
	err   error
	calls int
}

func (f *fakeGeocoder) Resolve(ctx context.Context, address string) (models.Coord, error) {
	f.calls++
	return f.coord, f.err
}

type fakeFinder struct {
	rides []models.Ride
	err   error
	calls int
	box   models.BoundingBox
}

func (f *fakeFinder) FindCandidates(ctx context.Context, box models.BoundingBox, center time.Time, window time.Duration) ([]models.Ride, error) {
	f.calls++
	f.box = box
	return f.rides, f.err
}

type fakeRouting struct {
	etas  map[int]int
	err   error
	calls int
	dests []models.Coord
}

func (f *fakeRouting) Etas(ctx context.Context, origin models.Coord, dests []models.Coord) (map[int]int, error) {
	f.calls++
	f.dests = dests
	return f.etas, f.err
}

func rideAt(id int64, lat, lon float64) models.Ride {
	return models.Ride{ID: id, DriverID: id, IsActive: true, Origin: models.Coord{Lat: lat, Lon: lon}, PostedAt: time.Now()}
}

func TestSelectCandidatesOrderAndLimit(t *testing.T) {
	center := models.Coord{Lat: 0, Lon: 0}
	rides := []models.Ride{rideAt(1, 0.5, 0.5), rideAt(2, 0.1, 0.1), rideAt(3, 0.3, 0.3)}

	cands := selectCandidates(rides, center, 2)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].ride.ID != 2 || cands[1].ride.ID != 3 {
		t.Fatalf("wrong order: %d, %d", cands[0].ride.ID, cands[1].ride.ID)
	}
	for i := 1; i < len(cands); i++ {
		if cands[i].dist2 < cands[i-1].dist2 {
			t.Fatalf("not sorted ascending at %d", i)
		}
	}
}

func TestSelectCandidatesStableOnTies(t *testing.T) {
	center := models.Coord{Lat: 0, Lon: 0}
	// same distance, different quadrants; input order must survive
	rides := []models.Ride{rideAt(7, 0.2, 0.2), rideAt(8, -0.2, 0.2), rideAt(9, 0.2, -0.2)}
	cands := selectCandidates(rides, center, 10)
	for i, want := range []int64{7, 8, 9} {
		if cands[i].ride.ID != want {
			t.Fatalf("tie order broken at %d: got %d want %d", i, cands[i].ride.ID, want)
		}
	}
}

func TestSelectCandidatesEmpty(t *testing.T) {
	if got := selectCandidates(nil, models.Coord{}, 5); len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}

func TestMergeMissingSortsLast(t *testing.T) {
	cands := []candidate{
		{ride: rideAt(1, 0, 0)},
		{ride: rideAt(2, 0, 0)},
		{ride: rideAt(3, 0, 0)},
	}
	// only index 2 has a route; 0 and 1 must trail in candidate order
	out := merge(cands, map[int]int{2: 300})
	if len(out) != len(cands) {
		t.Fatalf("length changed: %d != %d", len(out), len(cands))
	}
	if out[0].Ride.ID != 3 || out[0].EtaSeconds == nil || *out[0].EtaSeconds != 300 {
		t.Fatalf("expected ride 3 with eta 300 first, got %+v", out[0])
	}
	if out[1].Ride.ID != 1 || out[1].EtaSeconds != nil {
		t.Fatalf("expected ride 1 without eta second, got %+v", out[1])
	}
	if out[2].Ride.ID != 2 || out[2].EtaSeconds != nil {
		t.Fatalf("expected ride 2 without eta last, got %+v", out[2])
	}
}

func TestMergeIdempotent(t *testing.T) {
	cands := []candidate{{ride: rideAt(1, 0, 0)}, {ride: rideAt(2, 0, 0)}}
	etas := map[int]int{0: 120, 1: 60}
	a := merge(cands, etas)
	b := merge(cands, etas)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("merge not idempotent: %+v vs %+v", a, b)
	}
	if a[0].Ride.ID != 2 || a[1].Ride.ID != 1 {
		t.Fatalf("wrong eta order: %+v", a)
	}
}

func newService(g *fakeGeocoder, f *fakeFinder, r *fakeRouting) *Service {
	return &Service{Geocoder: g, Finder: f, Routing: r, DistanceLimit: 1, EtaCount: 10, Window: 24 * time.Hour}
}

func TestSearchBoundingBoxExcludesFarRides(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	for _, r := range []models.Ride{rideAt(0, 0.5, 0.5), rideAt(0, 2, 2), rideAt(0, 0.1, 0.1)} {
		r := r
		if err := st.CreateRide(ctx, &r); err != nil {
			t.Fatal(err)
		}
	}
	rt := &fakeRouting{etas: map[int]int{}}
	svc := &Service{
		Geocoder:      &fakeGeocoder{coord: models.Coord{Lat: 0, Lon: 0}},
		Finder:        st,
		Routing:       rt,
		DistanceLimit: 1,
		EtaCount:      2,
		Window:        24 * time.Hour,
	}
	out, err := svc.Search(ctx, "somewhere", time.Now())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	// (2,2) is outside the box; nearest-first means (0.1,0.1) then (0.5,0.5)
	if rt.dests[0].Lat != 0.1 || rt.dests[1].Lat != 0.5 {
		t.Fatalf("wrong candidates routed: %+v", rt.dests)
	}
}

func TestSearchAddressNotFoundSkipsStore(t *testing.T) {
	g := &fakeGeocoder{err: fmt.Errorf("%w: nope", geocode.ErrAddressNotFound)}
	f := &fakeFinder{}
	r := &fakeRouting{}
	_, err := newService(g, f, r).Search(context.Background(), "Nowhere, XYZ", time.Now())
	if !errors.Is(err, geocode.ErrAddressNotFound) {
		t.Fatalf("expected address-not-found, got %v", err)
	}
	if f.calls != 0 || r.calls != 0 {
		t.Fatalf("store/routing must not be called: store=%d routing=%d", f.calls, r.calls)
	}
}

func TestSearchNoCandidatesSkipsRouting(t *testing.T) {
	g := &fakeGeocoder{coord: models.Coord{Lat: 10, Lon: 10}}
	f := &fakeFinder{}
	r := &fakeRouting{}
	_, err := newService(g, f, r).Search(context.Background(), "empty town", time.Now())
	if !errors.Is(err, ErrNoRidesFound) {
		t.Fatalf("expected ErrNoRidesFound, got %v", err)
	}
	if r.calls != 0 {
		t.Fatalf("routing must not be called, got %d calls", r.calls)
	}
}

func TestSearchStoreUnavailablePropagates(t *testing.T) {
	g := &fakeGeocoder{coord: models.Coord{}}
	f := &fakeFinder{err: fmt.Errorf("%w: conn refused", store.ErrUnavailable)}
	_, err := newService(g, f, &fakeRouting{}).Search(context.Background(), "x", time.Now())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestSearchDegradesWhenRoutingFails(t *testing.T) {
	g := &fakeGeocoder{coord: models.Coord{}}
	f := &fakeFinder{rides: []models.Ride{rideAt(1, 0.1, 0), rideAt(2, 0.2, 0)}}
	r := &fakeRouting{err: errors.New("routing down")}
	out, err := newService(g, f, r).Search(context.Background(), "x", time.Now())
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both rides back, got %d", len(out))
	}
	for _, rr := range out {
		if rr.EtaSeconds != nil {
			t.Fatalf("expected missing ETAs, got %+v", rr)
		}
	}
	// degraded results keep proximity order
	if out[0].Ride.ID != 1 || out[1].Ride.ID != 2 {
		t.Fatalf("wrong order: %+v", out)
	}
}

func TestSearchCapsRoutedDestinations(t *testing.T) {
	g := &fakeGeocoder{coord: models.Coord{}}
	var rides []models.Ride
	for i := 0; i < 25; i++ {
		rides = append(rides, rideAt(int64(i+1), float64(i)*0.01, 0))
	}
	f := &fakeFinder{rides: rides}
	r := &fakeRouting{etas: map[int]int{}}
	svc := newService(g, f, r)
	svc.EtaCount = 10
	out, err := svc.Search(context.Background(), "x", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(r.dests) != 10 || len(out) != 10 {
		t.Fatalf("expected 10 routed and returned, got %d/%d", len(r.dests), len(out))
	}
}
