package handler

import (
	"net/http"
	"strings"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/feed"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades to the live status feed. Browsers cannot set headers
// on websocket requests, so the token may also come from ?token=.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		abortWithError(c, apperr.Unauthorized("token missing"))
		return
	}

	claims, err := h.Auth.Parse(tokenString)
	if err != nil {
		abortWithError(c, apperr.Unauthorized("invalid or expired token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := feed.NewWebSocketClient(h.BaseCtx, conn, h.Hub, feed.Filter{
		UserID:   claims.UserID,
		Official: claims.Role.IsOfficial(),
		Number:   strings.ToUpper(strings.TrimSpace(c.Query("number"))),
	})

	select {
	case h.Hub.RegisterCh <- client:
		client.Run()
	case <-h.BaseCtx.Done():
		conn.Close()
	}
}
