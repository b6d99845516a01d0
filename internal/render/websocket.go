package render

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket is a Sink that broadcasts every CommitEvent as JSON to
// however many viewers are currently connected. Connections come and
// go independently of the session's lifetime; a viewer that connects
// mid-session simply starts receiving from the next event.
type WebSocket struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	server *http.Server
}

// NewWebSocket starts an HTTP server on addr serving a single
// websocket endpoint at "/" that viewers connect to.
func NewWebSocket(addr string) (*WebSocket, error) {
	w := &WebSocket{conns: make(map[*websocket.Conn]struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handle)
	w.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := w.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("render: websocket server stopped", slog.String("err", err.Error()))
		}
	}()

	return w, nil
}

func (w *WebSocket) handle(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Warn("render: websocket upgrade failed", slog.String("err", err.Error()))
		return
	}

	w.mu.Lock()
	w.conns[conn] = struct{}{}
	w.mu.Unlock()

	// Viewers are read-only; drain and discard so the connection
	// notices a client-initiated close.
	go func() {
		defer w.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (w *WebSocket) remove(conn *websocket.Conn) {
	w.mu.Lock()
	delete(w.conns, conn)
	w.mu.Unlock()
	conn.Close()
}

func (w *WebSocket) Render(ev CommitEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	w.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(w.conns))
	for c := range w.conns {
		targets = append(targets, c)
	}
	w.mu.RUnlock()

	for _, c := range targets {
		c.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("render: dropping unresponsive websocket viewer", slog.String("err", err.Error()))
			w.remove(c)
		}
	}
	return nil
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	for c := range w.conns {
		c.Close()
	}
	w.conns = make(map[*websocket.Conn]struct{})
	w.mu.Unlock()

	return w.server.Close()
}
