package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/rideboard/internal/models"
)

// ErrUnavailable means the batched ETA call could not be completed at all.
// Missing per-destination durations are not errors; see Client.Etas.
var ErrUnavailable = errors.New("routing service unavailable")

// Client is the interface the search pipeline uses to fetch travel times.
type Client interface {
	Etas(ctx context.Context, origin models.Coord, dests []models.Coord) (map[int]int, error)
}

// MatrixClient fetches travel durations from an HTTP route-matrix provider.
// One batched request covers every destination, so the pipeline never fans
// out per candidate.
type MatrixClient struct {
	Endpoint   string
	APIKey     string
	Mode       string // travel mode, e.g. "driving"
	Preference string // routing preference, e.g. "traffic_aware"
	Client     *http.Client
}

func NewMatrixClient(endpoint, apiKey string, timeout time.Duration) *MatrixClient {
	return &MatrixClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Mode:       "driving",
		Preference: "traffic_aware",
		Client:     &http.Client{Timeout: timeout},
	}
}

type matrixRequest struct {
	Origin       models.Coord   `json:"origin"`
	Destinations []models.Coord `json:"destinations"`
	Mode         string         `json:"mode"`
	Preference   string         `json:"preference"`
}

type matrixElement struct {
	DestinationIndex int  `json:"destination_index"`
	DurationSeconds  *int `json:"duration_seconds"`
}

// Etas returns durations keyed by 0-based destination index. A destination
// the provider could not route to is simply absent from the result map.
func (m *MatrixClient) Etas(ctx context.Context, origin models.Coord, dests []models.Coord) (map[int]int, error) {
	etas := make(map[int]int, len(dests))
	if len(dests) == 0 {
		return etas, nil
	}

	body, err := json.Marshal(matrixRequest{
		Origin:       origin,
		Destinations: dests,
		Mode:         m.Mode,
		Preference:   m.Preference,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		Status   string          `json:"status"`
		Elements []matrixElement `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("%w: provider status %q", ErrUnavailable, out.Status)
	}

	for _, el := range out.Elements {
		if el.DurationSeconds == nil {
			continue // no route to this destination
		}
		if el.DestinationIndex < 0 || el.DestinationIndex >= len(dests) {
			continue
		}
		etas[el.DestinationIndex] = *el.DurationSeconds
	}
	return etas, nil
}
