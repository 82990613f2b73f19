package handlers

import (
	"net/http"

	"shuttle/internal/http/middleware"
	"shuttle/internal/utils"
	"shuttle/internal/websocket"

	"github.com/gin-gonic/gin"
)

// GET /api/ws?token=... upgrades to the driver's event stream.
func WebSocket(hub *websocket.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.GetDriver(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing driver", nil)
			return
		}
		if err := websocket.Serve(hub, claims.DriverID, c.Writer, c.Request); err != nil {
			utils.LogEvent(middleware.GetRequestID(c), "ws", "upgrade", err.Error())
		}
	}
}
