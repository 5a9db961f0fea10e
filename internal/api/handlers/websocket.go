package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WSServer upgrades authenticated requests to realtime sessions.
type WSServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type WSHandler struct {
	hub WSServer
}

func NewWSHandler(hub WSServer) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a realtime session. The auth cookie or a bearer token is required.
// @Tags websocket
// @Security CookieAuth
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 401 {object} models.ErrorResponse "Missing or invalid credential"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
