package presenter

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/evtrack/fleetlogger/internal/models"
	"github.com/evtrack/fleetlogger/internal/registry"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const pushInterval = time.Second

// TokenRefresher is invoked by the `RefreshToken` observer command.
type TokenRefresher interface {
	RequestRefresh(ctx context.Context) error
}

// SettingsStore is the narrow persistence surface for GetSettings/SetSettings.
type SettingsStore interface {
	LoadSettings() (models.Settings, error)
	SaveSettings(models.Settings) error
}

// Server is the §4.6 Presenter: an HTTP/WebSocket front implementing the
// command/response protocol named in spec.md and a once-per-second status push to
// every connected observer, grounded on the teacher's gorilla/mux + middleware
// chain (main.go) and request/response style (handlers/auth.go).
type Server struct {
	reg       *registry.Registry
	board     *Board
	tokens    TokenRefresher
	settings  SettingsStore
	admins    AdminStore
	jwtSecret string

	upgrader websocket.Upgrader

	mu        sync.Mutex
	observers map[*websocket.Conn]struct{}
}

// NewServer wires the presenter to its collaborators. jwtSecret signs and verifies
// observer session tokens; board is shared with the Processor (§4.3) which is the
// only writer.
func NewServer(reg *registry.Registry, board *Board, tokens TokenRefresher, settings SettingsStore, admins AdminStore, jwtSecret string) *Server {
	return &Server{
		reg: reg, board: board, tokens: tokens, settings: settings, admins: admins, jwtSecret: jwtSecret,
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		observers: make(map[*websocket.Conn]struct{}),
	}
}

// Router builds the gorilla/mux router: public health/login routes plus a
// JWT-gated subrouter for the observer WebSocket, mirroring the teacher's
// public-vs-protected split in main.go.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/observe", s.handleObserve)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleObserve upgrades to a WebSocket, registers the connection for the push
// loop, and reads observer commands until the connection closes.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[presenter] upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.observers[conn] = struct{}{}
	s.mu.Unlock()

	log.Printf("[presenter] observer connected from %s", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.observers, conn)
		s.mu.Unlock()
		conn.Close()
		log.Printf("[presenter] observer disconnected from %s", r.RemoteAddr)
	}()

	for _, st := range s.board.Snapshot() {
		if err := conn.WriteJSON(st); err != nil {
			return
		}
	}

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		resp := s.dispatch(r.Context(), cmd)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// Run is the once-per-second push loop of §4.6, independent of ingestion cadence.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	snapshot := s.board.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.observers {
		for _, st := range snapshot {
			if err := conn.WriteJSON(st); err != nil {
				conn.Close()
				delete(s.observers, conn)
				break
			}
		}
	}
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[presenter] panic recovered: %v", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[presenter] %s %s in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
