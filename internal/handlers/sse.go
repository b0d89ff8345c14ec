package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/sse"
)

type SSEHandler struct {
  hub *sse.SSEHub
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
  return &SSEHandler{hub: hub}
}

// Stream subscribes the caller to their own event channel and streams
// processing updates until the connection drops.
func (sh *SSEHandler) Stream(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }

  client := sh.hub.NewSSEClient(userID)
  sh.hub.AddChannel(client, userID.String())
  defer sh.hub.CloseClient(client)

  sh.hub.ServeHTTP(c.Writer, c.Request, client)
}
