package telemetry

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parking-status-backend/internal/logging"
)

const (
	maxMessageSize = 512
	pongWait       = 60 * time.Second
)

// Handler accepts sensor connections over WebSocket. Every text frame is one
// telemetry message.
type Handler struct {
	ingestor       *Ingestor
	upgrader       websocket.Upgrader
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHandler creates a WebSocket handler. An empty allowedOrigins accepts any origin.
func NewHandler(ingestor *Ingestor, allowedOrigins []string, logger *zap.Logger) *Handler {
	h := &Handler{
		ingestor:       ingestor,
		allowedOrigins: allowedOrigins,
		logger:         logging.OrNop(logger),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

// ServeWS upgrades the request and reads frames until the peer disconnects.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	h.readPump(c, conn, uuid.New().String())
}

func (h *Handler) readPump(c *gin.Context, conn *websocket.Conn, connID string) {
	defer conn.Close()
	log := h.logger.With(zap.String("conn_id", connID))
	log.Info("telemetry connection opened", zap.String("remote", c.ClientIP()))

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := logging.WithCorrelationID(c.Request.Context(), connID)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", zap.Error(err))
			}
			log.Info("telemetry connection closed")
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		h.ingestor.Submit(ctx, string(data))
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
