package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/local_position_estimator/internal/estimator"
	"github.com/relabs-tech/local_position_estimator/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	wsSendQueue    = 64
	wsWriteTimeout = time.Second
	defaultEvents  = 50
	maxEvents      = 1000
)

// EventLister is the read side of the diagnostics store.
type EventLister interface {
	RecentEvents(limit int) ([]estimator.Event, error)
}

// innovationHub fans innovation payloads out to websocket clients. Slow
// clients lose messages instead of stalling the MQTT callback.
type innovationHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newInnovationHub() *innovationHub {
	return &innovationHub{clients: make(map[chan []byte]struct{})}
}

func (h *innovationHub) add() chan []byte {
	ch := make(chan []byte, wsSendQueue)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *innovationHub) remove(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *innovationHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *innovationHub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// webServer holds what the HTTP handlers serve.
type webServer struct {
	mu       sync.RWMutex
	estimate json.RawMessage

	hub    *innovationHub
	events EventLister // nil without a diagnostics db
}

func newWebServer(events EventLister) *webServer {
	return &webServer{hub: newInnovationHub(), events: events}
}

func (s *webServer) setEstimate(payload []byte) {
	s.mu.Lock()
	s.estimate = append(json.RawMessage(nil), payload...)
	s.mu.Unlock()
}

func (s *webServer) handleEstimate(_ mqtt.Client, msg mqtt.Message) {
	if !json.Valid(msg.Payload()) {
		log.Printf("web: invalid estimate payload on %s", msg.Topic())
		return
	}
	s.setEstimate(msg.Payload())
}

func (s *webServer) handleInnovation(_ mqtt.Client, msg mqtt.Message) {
	s.hub.broadcast(append([]byte(nil), msg.Payload()...))
}

func (s *webServer) routes(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/estimate", s.serveEstimate)
	mux.HandleFunc("/api/events", s.serveEvents)
	mux.HandleFunc("/ws/innovations", s.serveInnovations)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func (s *webServer) serveEstimate(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	payload := s.estimate
	s.mu.RUnlock()

	if payload == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *webServer) serveEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "diagnostics db not configured", http.StatusNotFound)
		return
	}

	limit := defaultEvents
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEvents {
			http.Error(w, fmt.Sprintf("limit must be 1-%d", maxEvents), http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := s.events.RecentEvents(limit)
	if err != nil {
		log.Printf("web: events query error: %v", err)
		http.Error(w, "events unavailable", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []estimator.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (s *webServer) serveInnovations(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := s.hub.add()
	defer s.hub.remove(ch)

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}

func RunWeb() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var events EventLister
	if cfg.DiagDBPath != "" {
		db, err := store.Open(cfg.DiagDBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		events = db
	}
	srv := newWebServer(events)

	// 1) Connect to MQTT broker
	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) Latest estimate and live innovations
	if err := subscribe("web", client, cfg.TopicEstimate, srv.handleEstimate); err != nil {
		return err
	}
	if err := subscribe("web", client, cfg.TopicInnovations, srv.handleInnovation); err != nil {
		return err
	}

	// 3) HTTP API, websocket and static files from ./web
	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, srv.routes("web"))
}
