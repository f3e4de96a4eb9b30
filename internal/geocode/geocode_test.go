package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/rideboard/internal/models"
)

func TestResolveFirstResultWins(t *testing.T) {
	var gotAddress, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, `{"status":"OK","results":[
			{"geometry":{"location":{"lat":42.73,"lng":-73.68}}},
			{"geometry":{"location":{"lat":1,"lng":1}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	coord, err := c.Resolve(context.Background(), "Troy, NY")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coord != (models.Coord{Lat: 42.73, Lon: -73.68}) {
		t.Fatalf("wrong coord: %+v", coord)
	}
	if gotAddress != "Troy, NY" || gotKey != "test-key" {
		t.Fatalf("bad query: address=%q key=%q", gotAddress, gotKey)
	}
}

func TestResolveZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Resolve(context.Background(), "Nowhere, XYZ"); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestResolveNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Resolve(context.Background(), "anywhere"); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestResolveEmptyAddress(t *testing.T) {
	c := NewClient("http://unused", "", time.Second)
	if _, err := c.Resolve(context.Background(), "   "); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestResolveUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"status":"OK","results":[{"geometry":{"location":{"lat":5,"lng":6}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	c.Cache = NewCache(time.Minute)
	for i := 0; i < 3; i++ {
		// normalization should make these the same cache key
		if _, err := c.Resolve(context.Background(), "  Troy   NY "); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(time.Nanosecond)
	cache.Set("a", models.Coord{Lat: 1, Lon: 2})
	time.Sleep(time.Millisecond)
	if _, ok := cache.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
}
