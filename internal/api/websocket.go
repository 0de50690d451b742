// internal/api/websocket.go
package api

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsSendBuffer = 64
)

// WebSocketConnection is the part of *websocket.Conn a client uses
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient is one connected websocket
type WebSocketClient struct {
	conn     WebSocketConnection
	send     chan []byte
	closed   int32
	lastPing atomic.Int64
	logger   *utils.Logger
}

func newWebSocketClient(conn WebSocketConnection, logger *utils.Logger) *WebSocketClient {
	client := &WebSocketClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		logger: logger,
	}
	client.UpdatePing()
	return client
}

// Close closes the connection once
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		client.conn.Close()
	}
}

// IsClosed reports whether Close ran
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing records client activity
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired reports whether the client went quiet for longer than timeout
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// SendMessage queues a message; a full queue drops it
func (client *WebSocketClient) SendMessage(message map[string]interface{}) error {
	if client.IsClosed() {
		return nil
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case client.send <- msgBytes:
	default:
		client.logger.Warn("websocket send queue full, message dropped", map[string]interface{}{
			"type": message["type"],
		})
	}
	return nil
}

// SendError queues an error message for the client
func (client *WebSocketClient) SendError(errorMsg string) {
	client.SendMessage(map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// readPump runs until the peer goes away or stops answering pings
func (client *WebSocketClient) readPump(handle func(map[string]interface{})) {
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for !client.IsClosed() {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				client.logger.Warn("websocket read failed", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		client.UpdatePing()

		var message map[string]interface{}
		if err := json.Unmarshal(data, &message); err != nil {
			client.SendError("invalid message format")
			continue
		}
		handle(message)
	}
}

// writePump drains the send queue and pings until done closes
func (client *WebSocketClient) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ----------------------------------------

// SessionStream streams store events to websocket clients so a UI can
// navigate to the login page when the session ends.
type SessionStream struct {
	store    *store.Store
	logger   *utils.Logger
	metrics  *utils.MetricsCollector
	upgrader websocket.Upgrader
}

// NewSessionStream creates the /ws/session handler. Cross-site upgrades
// are refused unless the origin is listed.
func NewSessionStream(s *store.Store, logger *utils.Logger, metrics *utils.MetricsCollector, origins []string) *SessionStream {
	return &SessionStream{
		store:   s,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

// Serve upgrades the request and streams events until either side closes
func (ss *SessionStream) Serve(c *gin.Context) {
	conn, err := ss.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ss.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	client := newWebSocketClient(conn, ss.logger)
	events, cancel := ss.store.Events().Subscribe()
	done := make(chan struct{})

	ss.metrics.IncGauge("ws_session_clients")
	defer ss.metrics.DecGauge("ws_session_clients")

	go client.writePump(done)
	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					client.Close()
					return
				}
				client.SendMessage(eventMessage(ev))
			case <-done:
				return
			}
		}
	}()

	client.SendMessage(ss.snapshot())
	client.readPump(func(message map[string]interface{}) {
		switch message["type"] {
		case "ping":
			client.SendMessage(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			})
		case "session":
			client.SendMessage(ss.snapshot())
		default:
			client.SendError("unknown message type")
		}
	})

	cancel()
	close(done)
	client.Close()
}

// snapshot describes the session as it is now
func (ss *SessionStream) snapshot() map[string]interface{} {
	id, title := ss.store.SelectedProject()
	msg := map[string]interface{}{
		"type":          "session",
		"logged_in":     ss.store.IsLoggedIn(),
		"project_id":    id,
		"project_title": title,
		"timestamp":     time.Now().Format(time.RFC3339),
	}
	if u := ss.store.User(); u != nil {
		msg["user"] = u
	}
	return msg
}

func eventMessage(ev store.Event) map[string]interface{} {
	msg := map[string]interface{}{
		"type":      "event",
		"kind":      string(ev.Kind),
		"timestamp": ev.At.Format(time.RFC3339),
	}
	if ev.ProjectID != "" {
		msg["project_id"] = ev.ProjectID
	}
	if ev.Title != "" {
		msg["title"] = ev.Title
	}
	if ev.Message != "" {
		msg["message"] = ev.Message
	}
	if ev.Kind == store.EventLoggedOut || ev.Kind == store.EventSessionExpired {
		msg["redirect"] = LoginPath
	}
	return msg
}
