package handlers

import (
  "fmt"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/services"
)

type VisualizationHandler struct {
  vizService services.VisualizationService
}

func NewVisualizationHandler(vizService services.VisualizationService) *VisualizationHandler {
  return &VisualizationHandler{vizService: vizService}
}

func (vh *VisualizationHandler) GraphData(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  data, err := vh.vizService.GraphData(c.Request.Context(), userID, materialID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, data)
}

func (vh *VisualizationHandler) NodeDetail(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  nodeID, err := pathUUID(c, "nodeID")
  if err != nil {
    RespondError(c, err)
    return
  }
  detail, err := vh.vizService.NodeDetail(c.Request.Context(), userID, materialID, nodeID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, detail)
}

func (vh *VisualizationHandler) Statistics(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }
  stats, err := vh.vizService.Statistics(c.Request.Context(), userID, materialID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, stats)
}

type filterNodesRequest struct {
  Difficulty *int   `json:"difficulty"`
  Level      string `json:"level"`
  Status     string `json:"status"`
  Color      string `json:"color"`
}

func (vh *VisualizationHandler) FilterNodes(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  materialID, err := pathUUID(c, "materialID")
  if err != nil {
    RespondError(c, err)
    return
  }

  var req filterNodesRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, fmt.Errorf("%w: invalid filter payload", apperr.ErrInvalidArgument))
    return
  }
  if req.Difficulty != nil && (*req.Difficulty < 1 || *req.Difficulty > 5) {
    RespondError(c, fmt.Errorf("%w: difficulty must be an integer from 1 to 5", apperr.ErrInvalidArgument))
    return
  }
  query := services.NodeQuery{
    Difficulty: req.Difficulty,
    Level:      req.Level,
    Status:     req.Status,
    Color:      req.Color,
  }

  nodes, err := vh.vizService.FilterNodes(c.Request.Context(), userID, materialID, query)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, nodes)
}
