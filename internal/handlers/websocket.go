package handlers

import (
  "context"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/gorilla/websocket"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
  "github.com/browsepilot-org/browsepilot-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
  CheckOrigin: func(r *http.Request) bool {
    return true
  },
}

// WsHandler upgrades the connection and subscribes the client to its
// own chat-event channel. Organization channels are joined on demand
// via inbound subscribe messages.
func WsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil || rd.UserID == uuid.Nil {
      c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
      return
    }
    conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
    if err != nil {
      log.Warn("Failed to upgrade to websocket", "error", err)
      return
    }

    ctx, cancel := context.WithCancel(context.Background())
    client := socket.NewClient(conn, hub, uuid.New(), rd.UserID, cancel, log.With("wsClient", rd.UserID))

    hub.Subscribe(client, []string{"aichats:user:" + rd.UserID.String()})

    go client.ReadLoop(ctx)
    go client.WriteLoop(ctx)
  }
}
