package search

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/example/rideboard/internal/geocode"
	"github.com/example/rideboard/internal/models"
	"github.com/example/rideboard/internal/observability"
	"github.com/example/rideboard/internal/routing"
	"github.com/example/rideboard/internal/store"
)

// ErrNoRidesFound means the query was fine but nothing matched. Distinct
// from geocode.ErrAddressNotFound so the API can answer 404 vs 400.
var ErrNoRidesFound = errors.New("no rides found")

// Service runs the search pipeline: geocode, box query, candidate
// selection, one batched ETA call, ranking merge.
type Service struct {
	Geocoder geocode.Resolver
	Finder   store.CandidateFinder
	Routing  routing.Client
	Logger   *slog.Logger

	DistanceLimit float64       // bounding-box half-width, degrees
	EtaCount      int           // max candidates sent to the routing provider
	Window        time.Duration // posting-time tolerance each way around the target date
}

// Search resolves the address and returns rides near it ordered by ETA.
// A wholesale routing failure degrades to results without ETAs; a ride
// list with unknown travel times still beats an error page.
func (s *Service) Search(ctx context.Context, address string, date time.Time) ([]models.RankedRide, error) {
	start := time.Now()

	center, err := s.Geocoder.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	box := models.BoxAround(center, s.DistanceLimit)
	rides, err := s.Finder.FindCandidates(ctx, box, date, s.Window)
	if err != nil {
		return nil, err
	}

	cands := selectCandidates(rides, center, s.EtaCount)
	if len(cands) == 0 {
		return nil, ErrNoRidesFound
	}

	dests := make([]models.Coord, len(cands))
	for i, c := range cands {
		dests[i] = c.ride.Origin
	}
	etas, err := s.Routing.Etas(ctx, center, dests)
	if err != nil {
		observability.SearchEtaDegraded.Inc()
		if s.Logger != nil {
			s.Logger.Warn("routing unavailable, answering without ETAs", "error", err, "candidates", len(cands))
		}
		etas = nil
	}

	ranked := merge(cands, etas)
	observability.SearchesTotal.Inc()
	observability.SearchLatency.Observe(time.Since(start).Seconds())
	return ranked, nil
}

type candidate struct {
	ride  models.Ride
	dist2 float64
}

// selectCandidates orders rides by squared distance in coordinate-degree
// space and keeps at most limit of them. Deliberately not geodesic: the
// bounding box has already capped how wrong the flat approximation can be,
// and this runs on every ride in the box.
func selectCandidates(rides []models.Ride, center models.Coord, limit int) []candidate {
	cands := make([]candidate, 0, len(rides))
	for _, r := range rides {
		dLat := r.Origin.Lat - center.Lat
		dLon := r.Origin.Lon - center.Lon
		cands = append(cands, candidate{ride: r, dist2: dLat*dLat + dLon*dLon})
	}
	// stable: ties keep the store's return order
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist2 < cands[j].dist2 })
	if limit >= 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}

// missingEta sorts after every real duration.
const missingEta = int64(math.MaxInt64)

// merge joins ETA results back onto candidates by positional index and
// stable-sorts ascending by effective ETA. Candidates the provider had no
// route for keep their relative order at the tail. Pure; output length
// always equals input length.
func merge(cands []candidate, etas map[int]int) []models.RankedRide {
	type keyed struct {
		rr  models.RankedRide
		key int64
	}
	ks := make([]keyed, len(cands))
	for i, c := range cands {
		k := keyed{rr: models.RankedRide{Ride: c.ride}, key: missingEta}
		if v, ok := etas[i]; ok {
			v := v
			k.rr.EtaSeconds = &v
			k.key = int64(v)
		}
		ks[i] = k
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	out := make([]models.RankedRide, len(ks))
	for i, k := range ks {
		out[i] = k.rr
	}
	return out
}
