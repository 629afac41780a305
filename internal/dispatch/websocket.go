package dispatch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mssola/useragent"

	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/httputil"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/middleware/metadata"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// Handler upgrades authenticated requests to websocket connections and pumps
// hub frames to them.
type Handler struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket transport. checkOrigin may be nil to use
// the gorilla same-origin default.
func NewHandler(hub *Hub, logger *slog.Logger, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Register mounts GET /ws. Authentication middleware must run first.
func (h *Handler) Register(r chi.Router) {
	r.Get("/ws", h.HandleWebSocket)
}

// HandleWebSocket handles GET /ws.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return
	}

	c := h.hub.Register(userID)
	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	h.logger.InfoContext(ctx, "live connection opened",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"connection_id", c.ID,
		"client_ip", metadata.ClientIP(r),
		"browser", browser,
		"browser_version", version,
		"os", ua.OS(),
		"mobile", ua.Mobile(),
	)

	go h.writePump(ws, c)
	h.readPump(ws)

	h.hub.Unregister(c)
	h.logger.InfoContext(ctx, "live connection closed",
		"user_id", userID,
		"connection_id", c.ID,
	)
}

// readPump keeps the read side alive for control frames. Inbound data
// messages are discarded: the channel is server to client only.
func (h *Handler) readPump(ws *websocket.Conn) {
	ws.SetReadLimit(maxInboundSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
	}
}

// writePump drains c.Send until the hub closes it, pinging on an interval.
func (h *Handler) writePump(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
