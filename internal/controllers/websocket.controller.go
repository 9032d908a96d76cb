package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"scopeboard/internal/middleware"
	"scopeboard/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketController serves the refresh feed and editor tokens
type WebSocketController struct {
	hub          *services.RefreshHub
	auth         *services.AuthService
	bootstrapKey string
	security     *middleware.SecurityLogger
	validator    *middleware.InputValidator
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

func NewWebSocketController(hub *services.RefreshHub, auth *services.AuthService, bootstrapKey string, allowedOrigins []string, security *middleware.SecurityLogger, logger *zap.Logger) *WebSocketController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketController{
		hub:          hub,
		auth:         auth,
		bootstrapKey: bootstrapKey,
		security:     security,
		validator:    middleware.NewInputValidator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || len(allowedOrigins) == 0 || middleware.OriginAllowed(origin, allowedOrigins)
			},
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades an authenticated client onto the refresh feed.
// The token comes from the Authorization header or the token query param.
func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		wc.security.LogFailedAuth(c.ClientIP(), "missing token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := wc.auth.ValidateToken(token)
	if err != nil {
		wc.security.LogFailedAuth(c.ClientIP(), "invalid token: "+err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	wc.security.LogWebSocketConnected(c.ClientIP(), claims.Editor)

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := services.NewClientConnection(claims.Editor+"-"+xid.New().String(), ws)
	// dashboards listed up front save the client a subscribe round trip
	for _, id := range c.QueryArray("dashboard") {
		client.Subscribe(id)
	}
	wc.hub.Register(client)

	go wc.readPump(client)
	go wc.writePump(client)
}

// readPump reads messages from the WebSocket client
func (wc *WebSocketController) readPump(client *services.ClientConnection) {
	defer func() {
		wc.hub.Unregister(client.ID)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(4096)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg services.WebSocketMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				wc.logger.Warn("websocket read error", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}

		var reply *services.WebSocketMessage
		switch msg.Type {
		case "ping":
			reply = &services.WebSocketMessage{Type: "pong", Timestamp: time.Now()}

		case "subscribe":
			if msg.DashboardID == "" {
				reply = &services.WebSocketMessage{Type: "error", Timestamp: time.Now(), Error: "dashboard_id required"}
				break
			}
			client.Subscribe(msg.DashboardID)
			wc.logger.Debug("client subscribed", zap.String("client", client.ID), zap.String("dashboard", msg.DashboardID))

		case "unsubscribe":
			client.Unsubscribe(msg.DashboardID)

		default:
			reply = &services.WebSocketMessage{Type: "error", Timestamp: time.Now(), Error: "unknown message type " + msg.Type}
		}

		if reply == nil {
			continue
		}
		select {
		case client.Send <- *reply:
		case <-client.Close:
			return
		}
	}
}

// writePump writes messages to the WebSocket client
func (wc *WebSocketController) writePump(client *services.ClientConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					wc.logger.Warn("websocket write error", zap.String("client", client.ID), zap.Error(err))
				}
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.Close:
			_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

type tokenRequest struct {
	Editor string `json:"editor" binding:"required"`
}

// HandleGetToken issues an editor token to callers holding the bootstrap key
func (wc *WebSocketController) HandleGetToken(c *gin.Context) {
	if wc.bootstrapKey == "" || c.GetHeader("X-Bootstrap-Key") != wc.bootstrapKey {
		wc.security.LogFailedAuth(c.ClientIP(), "bad bootstrap key")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid bootstrap key"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !wc.validator.ValidateEditorName(req.Editor) {
		wc.security.LogFailedAuth(c.ClientIP(), "invalid editor name format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid editor name format"})
		return
	}

	token, expiresAt, err := wc.auth.GenerateToken(req.Editor)
	if err != nil {
		wc.logger.Error("token generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	wc.security.LogTokenGenerated(c.ClientIP(), req.Editor)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"editor":     req.Editor,
		"expires_at": expiresAt,
	})
}

// HandleTokenStatus reports whether the bearer token is still valid
func (wc *WebSocketController) HandleTokenStatus(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required in Authorization header"})
		return
	}
	claims, err := wc.auth.ValidateToken(token)
	if err != nil {
		wc.security.LogFailedAuth(c.ClientIP(), "invalid token: "+err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"editor":     claims.Editor,
		"expires_at": claims.ExpiresAt.Time,
		"issued_at":  claims.IssuedAt.Time,
	})
}
