package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/rideboard/internal/models"
)

// ErrAddressNotFound means the geocoder could not turn the address into a
// coordinate: empty input, no results, or a non-success provider status.
var ErrAddressNotFound = errors.New("address not found")

// Resolver is the interface the search pipeline uses to geocode addresses.
type Resolver interface {
	Resolve(ctx context.Context, address string) (models.Coord, error)
}

// Client resolves free-text addresses against an HTTP geocoding provider.
// The first result returned by the provider wins.
type Client struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
	Cache    *Cache // optional
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

func (c *Client) Resolve(ctx context.Context, address string) (models.Coord, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Coord{}, fmt.Errorf("%w: empty address", ErrAddressNotFound)
	}
	if c.Cache != nil {
		if coord, ok := c.Cache.Get(address); ok {
			return coord, nil
		}
	}

	q := url.Values{"address": {address}}
	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return models.Coord{}, fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return models.Coord{}, fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coord{}, fmt.Errorf("%w: geocoder status %d", ErrAddressNotFound, resp.StatusCode)
	}

	var out struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coord{}, fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	if out.Status != "OK" || len(out.Results) == 0 {
		return models.Coord{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}

	loc := out.Results[0].Geometry.Location
	coord := models.Coord{Lat: loc.Lat, Lon: loc.Lng}
	if !coord.Valid() {
		return models.Coord{}, fmt.Errorf("%w: provider returned invalid coordinate", ErrAddressNotFound)
	}
	if c.Cache != nil {
		c.Cache.Set(address, coord)
	}
	return coord, nil
}
