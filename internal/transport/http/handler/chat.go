package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"knowledgehub/internal/app"
	"knowledgehub/internal/pkg/jwtutil"
)

// ChatHandler upgrades a WebSocket connection and hands it to the
// ChatOrchestrator. The JWT travels as the final segment of the
// connection path (/ws/chat/<token>) rather than a header, matching
// manshu's ChatWebSocketHandler.extractUserId — browsers cannot set
// arbitrary headers on a WebSocket handshake.
type ChatHandler struct {
	orchestrator *app.ChatOrchestrator
	jwtSecret    string
	upgrader     websocket.Upgrader
}

func NewChatHandler(orchestrator *app.ChatOrchestrator, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
		jwtSecret:    jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *ChatHandler) Serve(c *gin.Context) {
	token := strings.TrimSpace(c.Param("handle"))
	if token == "" {
		response404(c)
		return
	}

	claims, err := jwtutil.ParseToken(h.jwtSecret, token)
	if err != nil {
		response404(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("chat handler: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The connection ack tells the client the stop-command token it
	// must echo back to cancel an in-flight response.
	_ = conn.WriteJSON(map[string]string{
		"type":                "connected",
		"_internal_cmd_token": h.orchestrator.StopToken(),
	})

	h.orchestrator.Serve(c.Request.Context(), conn, claims.UserID, claims.Username)
}

func response404(c *gin.Context) {
	c.AbortWithStatus(http.StatusNotFound)
}
