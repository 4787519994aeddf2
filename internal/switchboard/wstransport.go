package switchboard

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/luxfi/log"
)

// WSTransport terminates agent WebSocket connections, the production
// binding for Transport (§6 "Length-prefixed frames over WebSocket").
// Modeled on the teacher's HTTP-server-plus-mux wiring in
// networking/grpc (one mux.Router bound to one net/http.Server) combined
// with the gorilla/websocket upgrade pattern used by tos-network-gtos's
// API servers for exactly this kind of session termination.
type WSTransport struct {
	log      log.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	events chan Event

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWSTransport returns a WSTransport bound to addr (e.g. ":9000") at
// path (e.g. "/"). Call ListenAndServe to start accepting connections.
func NewWSTransport(addr, path string, logger log.Logger) *WSTransport {
	t := &WSTransport{
		log:      logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		events:   make(chan Event, 1024),
		conns:    make(map[string]*websocket.Conn),
	}
	router := mux.NewRouter()
	router.HandleFunc(path, t.handleUpgrade)
	t.server = &http.Server{Addr: addr, Handler: router}
	return t
}

// Events implements Transport.
func (t *WSTransport) Events() <-chan Event { return t.events }

// ListenAndServe starts the HTTP server; blocks until it stops.
func (t *WSTransport) ListenAndServe() error {
	return t.server.ListenAndServe()
}

func (t *WSTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warn("switchboard: websocket upgrade failed", log.Err(err))
		return
	}
	uri := "ws://" + r.RemoteAddr + "/" + uuid.NewString()

	t.mu.Lock()
	t.conns[uri] = conn
	t.mu.Unlock()

	t.events <- Event{Kind: EventConnect, URI: uri}
	go t.readLoop(uri, conn)
}

func (t *WSTransport) readLoop(uri string, conn *websocket.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, uri)
		t.mu.Unlock()
		conn.Close()
		t.events <- Event{Kind: EventDisconnect, URI: uri}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return
		}
		t.events <- Event{Kind: EventPayload, URI: uri, Payload: b}
	}
}

// Send implements Transport: writes a binary frame to the named session.
func (t *WSTransport) Send(uri string, b []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[uri]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("switchboard: no such session %s", uri)
	}
	return conn.WriteMessage(websocket.BinaryMessage, b)
}

// Close implements Transport: closes every session and the HTTP server.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	for uri, conn := range t.conns {
		conn.Close()
		delete(t.conns, uri)
	}
	t.mu.Unlock()
	close(t.events)
	return t.server.Close()
}
