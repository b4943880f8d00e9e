package telemetry

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket timing, matching the usual gorilla keepalive dance: the
// server pings inside the pong window so dead clients are detected.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	// The engine is LAN-facing; the HTTP shell in front of it owns
	// origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSConn adapts one gorilla websocket to the Sink interface. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type WSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// SendText writes one text frame under the write deadline.
func (w *WSConn) SendText(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears down the socket.
func (w *WSConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return w.conn.Close()
}

// clientMessage is the {type}-routed inbound frame.
type clientMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

// ServeWS upgrades the request, registers the connection with the
// manager, and runs the read/keepalive loops until the client goes
// away. Inbound frames route by type: ping->pong, subscribe->
// subscribed{channels}, anything else -> error{message}.
func ServeWS(manager *ConnectionManager, log *slog.Logger, w http.ResponseWriter, r *http.Request) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	ws := &WSConn{conn: conn}
	manager.Add(ws)
	log.Info("telemetry client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go pingLoop(ws, done)

	defer func() {
		close(done)
		manager.Remove(ws)
		log.Info("telemetry client disconnected", "remote", r.RemoteAddr)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		respond(ws, routeClientMessage(data))
	}
}

// routeClientMessage produces the reply frame for one inbound message.
func routeClientMessage(data []byte) map[string]any {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return map[string]any{"type": "error", "message": "malformed message"}
	}
	switch msg.Type {
	case "ping":
		return map[string]any{"type": "pong"}
	case "subscribe":
		channels := msg.Channels
		if len(channels) == 0 {
			channels = []string{"sim_state"}
		}
		return map[string]any{"type": "subscribed", "channels": channels}
	default:
		return map[string]any{"type": "error", "message": "unknown message type " + msg.Type}
	}
}

func respond(ws *WSConn, reply map[string]any) {
	data, err := json.Marshal(reply)
	if err != nil {
		return
	}
	_ = ws.SendText(data)
}

func pingLoop(ws *WSConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ws.mu.Lock()
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := ws.conn.WriteMessage(websocket.PingMessage, nil)
			ws.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
