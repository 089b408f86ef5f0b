package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nse-screener/models"
	"nse-screener/screener"
	"nse-screener/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
	sendBuffer     = 256
)

// ClientMessage is one UI action sent over the socket.
type ClientMessage struct {
	Type   string  `json:"type"`
	Series string  `json:"series,omitempty"`
	Query  string  `json:"query,omitempty"`
	Key    string  `json:"key,omitempty"`
	Page   int     `json:"page,omitempty"`
	Size   int     `json:"size,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
	Range  string  `json:"range,omitempty"`
	X      float64 `json:"x,omitempty"`
	Leave  bool    `json:"leave,omitempty"`
	Width  int     `json:"width,omitempty"`
}

// Event maps the message onto a session event. ok is false for unknown
// types.
func (m ClientMessage) Event() (ev session.Event, ok bool) {
	switch m.Type {
	case "series":
		return session.SetSeries{Series: m.Series}, true
	case "query":
		return session.SetQuery{Query: m.Query}, true
	case "sort":
		return session.ToggleSort{Key: screener.ParseSortKey(m.Key)}, true
	case "page":
		return session.GoPage{Page: m.Page}, true
	case "page_size":
		return session.SetPageSize{Size: m.Size}, true
	case "open":
		return session.Open{Symbol: m.Symbol}, true
	case "range":
		return session.SetRange{Range: models.ParseRange(m.Range)}, true
	case "close":
		return session.Close{}, true
	case "pointer":
		return session.Pointer{X: m.X, Leave: m.Leave}, true
	case "resize":
		return session.Resize{Width: m.Width}, true
	case "reload":
		return session.Reload{}, true
	default:
		return nil, false
	}
}

// Hub tracks the live websocket sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*session.Session)}
}

func (h *Hub) Register(s *session.Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()
}

func (h *Hub) Unregister(s *session.Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID())
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// wsClient is the session's sink. Updates are dropped once the connection
// is gone so the session loop never blocks on a dead peer.
type wsClient struct {
	send chan session.Update
	done <-chan struct{}
}

func (c *wsClient) Emit(u session.Update) {
	select {
	case c.send <- u:
	case <-c.done:
	}
}

// WebSocket upgrades the connection and runs one screener session on it
// until either side goes away.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &wsClient{send: make(chan session.Update, sendBuffer), done: ctx.Done()}
	sess := session.New(h.Catalog, h.Gateway, client, session.Options{
		PageSize:   h.pageSize,
		ChartWidth: h.chartWidth,
		Logger:     h.logger,
	})
	h.hub.Register(sess)
	h.logger.Info("websocket session opened", "session", sess.ID(), "remote", r.RemoteAddr)

	go func() {
		sess.Run(ctx)
		h.hub.Unregister(sess)
		h.logger.Info("websocket session closed", "session", sess.ID())
	}()
	go h.writePump(conn, client, cancel)
	go h.readPump(conn, sess, cancel)
}

// readPump turns client messages into session events.
func (h *Handler) readPump(conn *websocket.Conn, sess *session.Session, cancel context.CancelFunc) {
	defer func() {
		cancel()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "session", sess.ID(), "err", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed message", "session", sess.ID(), "err", err)
			continue
		}
		ev, ok := msg.Event()
		if !ok {
			h.logger.Debug("ignoring unknown message", "session", sess.ID(), "type", msg.Type)
			continue
		}
		if !sess.Post(ev) {
			return
		}
	}
}

// writePump sends session updates and keeps the connection alive.
func (h *Handler) writePump(conn *websocket.Conn, client *wsClient, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case u := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
