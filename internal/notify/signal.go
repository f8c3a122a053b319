package notify

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Signaller carries change signals to execution contexts other than the one
// that wrote. The writing context never hears its own broadcast, mirroring
// the storage-change event that does not fire back into its origin.
type Signaller interface {
	Broadcast(key string) error
	SetHandler(fn func(key string))
	Close() error
}

type signalMessage struct {
	Key string `json:"key"`
}

// Group is an in-process signaller fabric: every attached member hears the
// broadcasts of every other member, but not its own.
type Group struct {
	mu      sync.Mutex
	members map[*groupMember]bool
}

func NewGroup() *Group {
	return &Group{members: make(map[*groupMember]bool)}
}

func (g *Group) Attach() Signaller {
	m := &groupMember{group: g}
	g.mu.Lock()
	g.members[m] = true
	g.mu.Unlock()
	return m
}

type groupMember struct {
	group *Group

	mu      sync.Mutex
	handler func(key string)
}

func (m *groupMember) SetHandler(fn func(key string)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

func (m *groupMember) Broadcast(key string) error {
	m.group.mu.Lock()
	others := make([]*groupMember, 0, len(m.group.members))
	for member := range m.group.members {
		if member != m {
			others = append(others, member)
		}
	}
	m.group.mu.Unlock()

	for _, other := range others {
		other.mu.Lock()
		handler := other.handler
		other.mu.Unlock()
		if handler != nil {
			handler(key)
		}
	}
	return nil
}

func (m *groupMember) Close() error {
	m.group.mu.Lock()
	delete(m.group.members, m)
	m.group.mu.Unlock()
	return nil
}

// Hub relays signals between processes over websockets. Each message is
// forwarded to every connection except the one it arrived on.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// Router mounts the hub on /ws.
func (h *Hub) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ws", h.serveWS)
	return router
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg signalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		h.forward(conn, msg)
	}
}

func (h *Hub) forward(origin *websocket.Conn, msg signalMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if conn == origin {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Warn("Failed to forward signal", zap.Error(err))
		}
	}
}

// WebsocketSignaller is one context's connection to a Hub.
type WebsocketSignaller struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu      sync.Mutex
	handler func(key string)
}

func DialSignaller(ctx context.Context, hubURL string, logger *zap.Logger) (*WebsocketSignaller, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, hubURL, nil)
	if err != nil {
		return nil, err
	}

	s := &WebsocketSignaller{conn: conn, logger: logger}
	go s.readPump()
	return s, nil
}

func (s *WebsocketSignaller) readPump() {
	for {
		var msg signalMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(msg.Key)
		}
	}
}

func (s *WebsocketSignaller) SetHandler(fn func(key string)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *WebsocketSignaller) Broadcast(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(signalMessage{Key: key})
}

func (s *WebsocketSignaller) Close() error {
	return s.conn.Close()
}
