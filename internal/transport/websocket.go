package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	applog "direction/internal/log"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeTimeout   = 2 * time.Second
)

// WebSocketTransport implements the Transport interface for WebSocket connections.
// Messages are broadcast as JSON to every client connected on /ws.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
	listener  net.Listener
	done      sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// NewWebSocketTransport listens on addr and starts serving WebSocket clients.
// An addr with port 0 picks a free port; Addr reports the one chosen.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Viewers are served from other origins
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, broadcastQueue),
		listener:  ln,
	}

	wst.start()
	return wst, nil
}

// Addr returns the address the server listens on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// start begins the WebSocket server
func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.listener.Addr())
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()

	wst.done.Add(1)
	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Clients never send; a read error means the connection is gone.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		if wst.clients[conn] {
			delete(wst.clients, conn)
			conn.Close()
		}
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.done.Done()
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteJSON(data); err != nil {
				applog.Warnf("WebSocketTransport: Error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues data for broadcast. A full queue drops the message rather
// than stall the frame loop.
func (wst *WebSocketTransport) Send(data any) error {
	wst.closeMu.RLock()
	defer wst.closeMu.RUnlock()
	if wst.closed {
		return ErrClosed
	}

	select {
	case wst.broadcast <- data:
	default:
		applog.Debugf("WebSocketTransport: Queue full, dropping message")
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	wst.closeMu.Lock()
	if wst.closed {
		wst.closeMu.Unlock()
		return nil
	}
	wst.closed = true
	close(wst.broadcast)
	wst.closeMu.Unlock()

	applog.Infof("WebSocketTransport: Closing server")
	wst.done.Wait()

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	return wst.server.Close()
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
