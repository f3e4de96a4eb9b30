package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/rideboard/internal/models"
)

var (
	// ErrUnavailable wraps connectivity/query failures from the backing store.
	ErrUnavailable = errors.New("ride store unavailable")
	// ErrRideNotFound is returned for lookups of unknown or inactive rides.
	ErrRideNotFound = errors.New("ride not found")
)

// CandidateFinder fetches active rides whose origin lies inside box
// (inclusive on both axes) and whose posting time falls within
// [center-window, center+window]. Result order is unspecified; ranking
// happens downstream. Zero results is not an error.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, box models.BoundingBox, center time.Time, window time.Duration) ([]models.Ride, error)
}

// RideStore defines persistence operations for ride postings.
type RideStore interface {
	CandidateFinder
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id int64) (models.Ride, error)
	DeactivateRide(ctx context.Context, id int64) error
}

// MemoryStore keeps rides in a map. Used in tests and for local runs
// without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	rides  map[int64]models.Ride
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[int64]models.Ride)}
}

func (m *MemoryStore) CreateRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.PostedAt.IsZero() {
		r.PostedAt = time.Now().UTC()
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) GetRide(_ context.Context, id int64) (models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return models.Ride{}, ErrRideNotFound
	}
	return r, nil
}

func (m *MemoryStore) DeactivateRide(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrRideNotFound
	}
	r.IsActive = false
	m.rides[id] = r
	return nil
}

func (m *MemoryStore) FindCandidates(_ context.Context, box models.BoundingBox, center time.Time, window time.Duration) ([]models.Ride, error) {
	from, to := center.Add(-window), center.Add(window)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Ride
	for _, r := range m.rides {
		if !r.IsActive || !box.Contains(r.Origin) {
			continue
		}
		if r.PostedAt.Before(from) || r.PostedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	// map iteration is random; keep local runs reproducible
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
