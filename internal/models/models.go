package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is a real point on the globe.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// BoundingBox is the rectangular lat/lon prefilter region used to cheaply
// exclude far-away rides before ranking. Bounds are inclusive on both axes.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoxAround builds a box centered on c with the given angular half-width in
// degrees, clamped to valid latitude/longitude ranges.
func BoxAround(c Coord, halfWidth float64) BoundingBox {
	b := BoundingBox{
		MinLat: c.Lat - halfWidth,
		MaxLat: c.Lat + halfWidth,
		MinLon: c.Lon - halfWidth,
		MaxLon: c.Lon + halfWidth,
	}
	if b.MinLat < -90 {
		b.MinLat = -90
	}
	if b.MaxLat > 90 {
		b.MaxLat = 90
	}
	if b.MinLon < -180 {
		b.MinLon = -180
	}
	if b.MaxLon > 180 {
		b.MaxLon = 180
	}
	return b
}

func (b BoundingBox) Contains(c Coord) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Ride is a posted ride offer. Immutable once persisted except for IsActive,
// which flips off when the ride is booked or expires.
type Ride struct {
	ID          int64     `json:"id"`
	DriverID    int64     `json:"driver_id"`
	Address     string    `json:"address"`
	Origin      Coord     `json:"origin"`
	Cost        float64   `json:"cost"`
	IsActive    bool      `json:"is_active"`
	Description string    `json:"description,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}

// RidePosting is the POST /request_ride payload.
type RidePosting struct {
	DriverID    int64   `json:"driver_id"`
	Address     string  `json:"address"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// RankedRide is one search result. EtaSeconds is nil when the routing
// provider had no route to the searcher's location.
type RankedRide struct {
	Ride       Ride `json:"ride"`
	EtaSeconds *int `json:"eta_seconds"`
}
