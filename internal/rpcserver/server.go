package rpcserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/luxfi/log"

	"github.com/lux-nexus/switchboard/internal/chainconfig"
	"github.com/lux-nexus/switchboard/internal/conductor"
	"github.com/lux-nexus/switchboard/internal/metrics"
)

// Server runs one HTTP listener per configured interface (§6
// `[interfaces.driver]` selects websocket or http + port), each bound to
// its own Dispatcher. Modeled on the switchboard's WSTransport: one
// mux.Router per net/http.Server, gorilla/websocket for the frame
// upgrade, google/uuid to tag every request/connection for correlation
// in logs and metrics.
type Server struct {
	log log.Logger
	met *metrics.Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	servers map[string]*http.Server // interface id -> listener
}

// NewServer builds one Dispatcher and one net/http.Server per interface
// in cfg.Interfaces, bound against cond's instances. Call Start to begin
// listening.
func NewServer(cond *conductor.Conductor, cfg *chainconfig.Config, logger log.Logger, met *metrics.Metrics) *Server {
	s := &Server{
		log:      logger,
		met:      met,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		servers:  make(map[string]*http.Server),
	}
	for _, iface := range cfg.Interfaces {
		d := NewDispatcher(cond, iface, logger, met)
		router := mux.NewRouter()
		switch iface.Driver.Kind {
		case chainconfig.DriverWebsocket:
			router.HandleFunc("/", s.websocketHandler(d))
		default:
			router.HandleFunc("/", s.httpHandler(d)).Methods(http.MethodPost)
		}
		s.servers[iface.ID] = &http.Server{
			Addr:    fmt.Sprintf(":%d", iface.Driver.Port),
			Handler: router,
		}
	}
	return s
}

// Start begins listening on every configured interface's port, each in
// its own goroutine; it returns immediately. Listener errors are logged,
// not returned, since one interface's bind failure shouldn't prevent the
// others from serving (§5 Cancellation applies per-subsystem, not
// globally, to this layer).
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, srv := range s.servers {
		id, srv := id, srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("rpcserver: interface listener exited", log.String("interface", id), log.Err(err))
			}
		}()
	}
}

// Shutdown gracefully stops every interface listener.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("rpcserver: interface shutdown error", log.String("interface", id), log.Err(err))
		}
	}
}

// httpHandler serves one JSON-RPC request per HTTP POST (§6 "over
// WebSocket or HTTP").
func (s *Server) httpHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading request body", http.StatusBadRequest)
			return
		}
		resp := d.Handle(withCorrelationID(r.Context(), reqID), body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(resp)
	}
}

// websocketHandler upgrades the connection and dispatches one JSON-RPC
// call per inbound text/binary frame, replying on the same connection —
// the admin surface's long-lived session, as opposed to HTTP's one-shot
// request/response.
func (s *Server) websocketHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("rpcserver: websocket upgrade failed", log.Err(err))
			return
		}
		connID := uuid.NewString()
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			resp := d.Handle(withCorrelationID(r.Context(), connID), msg)
			if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
				return
			}
		}
	}
}

type correlationIDKey struct{}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID recovers the per-request/connection id withCorrelationID
// attached, for handlers that want to thread it into zome calls or logs.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey{}).(string)
	return id, ok
}
