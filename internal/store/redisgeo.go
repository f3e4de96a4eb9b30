package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/rideboard/internal/models"
)

// kmPerDegree over-approximates a degree of longitude everywhere, so the
// redis box always covers the requested one; exact bounds are re-checked.
const kmPerDegree = 111.32

// RedisGeoFinder serves candidate queries from the ride geo mirror the
// indexer maintains, sparing Postgres the hot search path.
type RedisGeoFinder struct {
	client *redis.Client
	key    string
}

func NewRedisGeoFinder(addr, password, key string) *RedisGeoFinder {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeoFinder{client: c, key: key}
}

func RideMetaKey(id int64) string { return "ride:meta:" + strconv.FormatInt(id, 10) }

func (r *RedisGeoFinder) Close() error { return r.client.Close() }

func (r *RedisGeoFinder) FindCandidates(ctx context.Context, box models.BoundingBox, center time.Time, window time.Duration) ([]models.Ride, error) {
	locs, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude: (box.MinLon + box.MaxLon) / 2,
			Latitude:  (box.MinLat + box.MaxLat) / 2,
			BoxWidth:  (box.MaxLon - box.MinLon) * kmPerDegree,
			BoxHeight: (box.MaxLat - box.MinLat) * kmPerDegree,
			BoxUnit:   "km",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	from, to := center.Add(-window), center.Add(window)
	var out []models.Ride
	for _, g := range locs {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		ride := models.Ride{ID: id, Origin: models.Coord{Lat: g.Latitude, Lon: g.Longitude}}
		if !box.Contains(ride.Origin) {
			continue
		}
		meta, err := r.client.HGetAll(ctx, RideMetaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if meta["active"] != "true" {
			continue
		}
		posted, err := time.Parse(time.RFC3339, meta["posted_at"])
		if err != nil || posted.Before(from) || posted.After(to) {
			continue
		}
		ride.IsActive = true
		ride.PostedAt = posted
		ride.Address = meta["address"]
		ride.Description = meta["description"]
		if v, err := strconv.ParseInt(meta["driver_id"], 10, 64); err == nil {
			ride.DriverID = v
		}
		if v, err := strconv.ParseFloat(meta["cost"], 64); err == nil {
			ride.Cost = v
		}
		out = append(out, ride)
	}
	return out, nil
}
