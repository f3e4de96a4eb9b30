package notify

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/rideboard/internal/models"
)

// WSSession represents one connected ride watcher.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(r models.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(r)
}

// WSRegistry holds watcher sessions and pushes each newly posted ride to
// all of them.
type WSRegistry struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[int64]*WSSession)} }

// Add registers a connection and returns its session id for later removal.
func (r *WSRegistry) Add(conn *websocket.Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.sessions[r.nextID] = &WSSession{conn: conn}
	return r.nextID
}

func (r *WSRegistry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		_ = s.conn.Close()
		delete(r.sessions, id)
	}
}

// Broadcast sends the ride to every session, dropping any whose write fails.
func (r *WSRegistry) Broadcast(ride models.Ride) {
	r.mu.RLock()
	snapshot := make(map[int64]*WSSession, len(r.sessions))
	for id, s := range r.sessions {
		snapshot[id] = s
	}
	r.mu.RUnlock()

	for id, s := range snapshot {
		if err := s.send(ride); err != nil {
			log.Printf("ws send error, dropping session %d: %v", id, err)
			r.Remove(id)
		}
	}
}
