// Package dashboard exposes the bot's live state to an external
// observer: a push-only WebSocket stream of reconciled ticks plus a
// minimal HTTP surface, kept interface-only per spec.md §1 (the
// dashboard UI itself is an external collaborator, not implemented
// here) while still carrying the teacher's gorilla/websocket stack the
// way every other ambient concern in this repo does.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/oraclewindow/tradebot/internal/oracle"
)

// Notifier is the seam the teacher's telegram bot plugged into; no
// concrete sink is wired here since spec.md §1 scopes out notification
// surfaces as an external collaborator, but the interface is kept so
// one can be added without touching the dashboard or engines.
type Notifier interface {
	Notify(event string, fields map[string]interface{})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves a push-only tick feed over WebSocket plus a health
// endpoint, backed by the same oracle.Feed the trading engines read.
type Server struct {
	port int
	feed *oracle.Feed
	http *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewServer builds a dashboard Server bound to port, streaming ticks
// from feed.
func NewServer(port int, feed *oracle.Feed) *Server {
	return &Server{
		port:    port,
		feed:    feed,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Serve runs the HTTP/WS server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go s.broadcastLoop(ctx)

	log.Info().Int("port", s.port).Msg("dashboard server listening")
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"sources": s.feed.Sources(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard: websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Push-only: the dashboard has no inbound command surface, so just
	// drain and discard control frames until the client disconnects.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price, ok := s.feed.Price()
			if !ok {
				continue
			}
			s.broadcast(map[string]interface{}{
				"type":      "tick",
				"price":     price.String(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}

func (s *Server) broadcast(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}
