package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Every message is broadcast as JSON to all connected clients.
type WebSocketTransport struct {
	path      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	listener  net.Listener
	server    *http.Server

	closeMu   sync.RWMutex // Guards closed against Send.
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebSocketTransport listens on addr and serves clients at path
// (default "/ws"). Use ":0" to pick a free port; Addr reports the result.
func NewWebSocketTransport(addr, path string) (*WebSocketTransport, error) {
	if path == "" {
		path = "/ws"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Display clients are served from anywhere.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
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
	mux.HandleFunc(wst.path, wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		logger.Infof("WebSocket server listening on %s%s", wst.listener.Addr(), wst.path)
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket server error: %v", err)
		}
	}()

	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	// Registration happens under closeMu so Close sees every client.
	wst.closeMu.RLock()
	if wst.closed {
		wst.closeMu.RUnlock()
		conn.Close()
		return
	}
	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.wg.Add(1)
	wst.closeMu.RUnlock()

	logger.Infof("WebSocket client connected, total: %d", total)

	// Clients only listen; a read error means the client went away.
	go func() {
		defer wst.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		delete(wst.clients, conn)
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		conn.Close()
		logger.Infof("WebSocket client disconnected, total: %d", total)
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			if err := client.WriteJSON(data); err != nil {
				logger.Warnf("WebSocket send error: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues data for broadcast. When the queue is full the message is
// dropped; a newer result follows within one cycle.
func (wst *WebSocketTransport) Send(data any) error {
	wst.closeMu.RLock()
	defer wst.closeMu.RUnlock()
	if wst.closed {
		return ErrClosed
	}

	select {
	case wst.broadcast <- data:
	default:
		logger.Debugf("WebSocket broadcast queue full, dropping message")
	}
	return nil
}

// Close shuts down the WebSocket server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("closing WebSocket server")

		wst.closeMu.Lock()
		wst.closed = true
		close(wst.broadcast)
		wst.closeMu.Unlock()

		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
