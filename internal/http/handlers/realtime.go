package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/dialogforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
	"github.com/yungbote/dialogforge-backend/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// RealtimeHandler streams the caller's job events over a websocket.
type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeHandler checks the upgrade Origin against origins. An empty list accepts any origin.
func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, origins []string) *RealtimeHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &RealtimeHandler{
		log: log.With("handler", "RealtimeHandler"),
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

func (h *RealtimeHandler) Stream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "unauthorized", "code": "unauthorized"}})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	client := h.hub.Subscribe(rd.UserID)
	log := h.log.With("clientID", client.ID, "user_id", rd.UserID)
	log.Info("Realtime stream opened")

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, client, done)

	h.hub.Remove(client)
	_ = conn.Close()
	log.Info("Realtime stream closed")
}

// readLoop discards client frames and exists to observe pongs and the close handshake.
func (h *RealtimeHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *RealtimeHandler) writeLoop(conn *websocket.Conn, client *realtime.Client, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-client.Outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
