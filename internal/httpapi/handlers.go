package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/rideboard/internal/config"
	"github.com/example/rideboard/internal/geocode"
	"github.com/example/rideboard/internal/ingest"
	"github.com/example/rideboard/internal/models"
	"github.com/example/rideboard/internal/notify"
	"github.com/example/rideboard/internal/observability"
	"github.com/example/rideboard/internal/payments"
	"github.com/example/rideboard/internal/routing"
	"github.com/example/rideboard/internal/search"
	"github.com/example/rideboard/internal/store"
)

// Searcher is what the search handler needs from the pipeline.
type Searcher interface {
	Search(ctx context.Context, address string, date time.Time) ([]models.RankedRide, error)
}

type Server struct {
	Searcher Searcher
	Geocoder geocode.Resolver
	Store    store.RideStore
	Kafka    *ingest.KafkaProducer
	WSReg    *notify.WSRegistry
	Booker   payments.Booker

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires handlers around explicit dependencies.
func NewServer(searcher Searcher, geocoder geocode.Resolver, st store.RideStore, kp *ingest.KafkaProducer, booker payments.Booker, logger *slog.Logger) *Server {
	s := &Server{
		Searcher: searcher,
		Geocoder: geocoder,
		Store:    st,
		Kafka:    kp,
		WSReg:    notify.NewWSRegistry(),
		Booker:   booker,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromConfig builds the full dependency graph from configuration:
// Postgres when PG_DSN is set (falling back to memory for local runs), the
// Redis geo mirror as candidate source when REDIS_ADDR is set, Kafka when
// brokers are configured.
func NewServerFromConfig(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var st store.RideStore
	if cfg.PGDSN != "" {
		ps, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		st = ps
	} else {
		st = store.NewMemoryStore()
	}

	var finder store.CandidateFinder = st
	if cfg.RedisAddr != "" {
		finder = store.NewRedisGeoFinder(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	}

	geocoder := geocode.NewClient(cfg.GeocoderEndpoint, cfg.GeocoderAPIKey, cfg.ExternalTimeout)
	geocoder.Cache = geocode.NewCache(time.Hour)

	searcher := &search.Service{
		Geocoder:      geocoder,
		Finder:        finder,
		Routing:       routing.NewMatrixClient(cfg.RoutingEndpoint, cfg.RoutingAPIKey, cfg.ExternalTimeout),
		Logger:        logger,
		DistanceLimit: cfg.DistanceLimit,
		EtaCount:      cfg.EtaCount,
		Window:        cfg.SearchWindow,
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	return NewServer(searcher, geocoder, st, kp, payments.NewStripeClient(), logger), nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/search_rides/{address}/{date}", s.handleSearch).Methods("GET")
	s.mux.HandleFunc("/request_ride", s.handlePostRide).Methods("POST")
	s.mux.HandleFunc("/rides/{id:[0-9]+}", s.handleGetRide).Methods("GET")
	s.mux.HandleFunc("/rides/{id:[0-9]+}/book", s.handleBookRide).Methods("POST")
	s.mux.HandleFunc("/ws/rides", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, err := time.Parse(time.RFC3339, vars["date"])
	if err != nil {
		http.Error(w, "date must be ISO-8601", http.StatusBadRequest)
		return
	}
	ranked, err := s.Searcher.Search(r.Context(), vars["address"], date)
	switch {
	case err == nil:
	case errors.Is(err, geocode.ErrAddressNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, search.ErrNoRidesFound):
		http.Error(w, "no rides found", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	default:
		s.logger.Error("search failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (s *Server) handlePostRide(w http.ResponseWriter, r *http.Request) {
	var p models.RidePosting
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.DriverID <= 0 || p.Address == "" || p.Cost < 0 {
		http.Error(w, "driver_id, address and a non-negative cost are required", http.StatusBadRequest)
		return
	}

	origin := models.Coord{Lat: p.Lat, Lon: p.Lon}
	if p.Lat == 0 && p.Lon == 0 {
		// client did not resolve the address; do it server-side
		c, err := s.Geocoder.Resolve(r.Context(), p.Address)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		origin = c
	}
	if !origin.Valid() {
		http.Error(w, "invalid coordinate", http.StatusBadRequest)
		return
	}

	ride := models.Ride{
		DriverID:    p.DriverID,
		Address:     p.Address,
		Origin:      origin,
		Cost:        p.Cost,
		IsActive:    true,
		Description: p.Description,
		PostedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateRide(r.Context(), &ride); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishRide(ride); err != nil {
			s.logger.Warn("ride event publish failed", "ride_id", ride.ID, "error", err)
		}
	}
	s.WSReg.Broadcast(ride)
	observability.RidesPosted.Inc()
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	ride, err := s.Store.GetRide(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrRideNotFound):
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleBookRide(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var body struct {
		CustomerID string `json:"customer_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	ride, err := s.Store.GetRide(r.Context(), id)
	if errors.Is(err, store.ErrRideNotFound) || (err == nil && !ride.IsActive) {
		http.Error(w, "ride not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	piID, err := s.Booker.Hold(r.Context(), int64(ride.Cost*100), "usd", body.CustomerID)
	if err != nil {
		s.logger.Error("fare hold failed", "ride_id", id, "error", err)
		http.Error(w, "payment failed", http.StatusBadGateway)
		return
	}
	if err := s.Store.DeactivateRide(r.Context(), id); err != nil {
		// someone else booked first or the store went away; release the hold
		_ = s.Booker.Cancel(r.Context(), piID)
		http.Error(w, "ride no longer available", http.StatusConflict)
		return
	}
	if s.Kafka != nil {
		// keep the geo mirror in step with the deactivation
		ride.IsActive = false
		if err := s.Kafka.PublishRide(ride); err != nil {
			s.logger.Warn("ride event publish failed", "ride_id", ride.ID, "error", err)
		}
	}
	observability.RidesBooked.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"payment_intent_id": piID})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	id := s.WSReg.Add(conn)
	go func() {
		// watchers only listen; the read loop just detects disconnects
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.WSReg.Remove(id)
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
