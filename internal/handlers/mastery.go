package handlers

import (
  "fmt"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/services"
)

type MasteryHandler struct {
  masteryService services.UserMasteryService
}

func NewMasteryHandler(masteryService services.UserMasteryService) *MasteryHandler {
  return &MasteryHandler{masteryService: masteryService}
}

func (mh *MasteryHandler) GetNodeMastery(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  nodeID, err := pathUUID(c, "nodeID")
  if err != nil {
    RespondError(c, err)
    return
  }
  record, err := mh.masteryService.GetOrCreate(c.Request.Context(), userID, nodeID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, record)
}

func (mh *MasteryHandler) RecordAttempt(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, err)
    return
  }
  nodeID, err := pathUUID(c, "nodeID")
  if err != nil {
    RespondError(c, err)
    return
  }
  var req struct {
    Correct     bool `json:"correct"`
    TimeMinutes int  `json:"time_minutes"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, fmt.Errorf("%w: invalid request body", apperr.ErrInvalidArgument))
    return
  }
  record, err := mh.masteryService.RecordAttempt(c.Request.Context(), userID, nodeID, services.RecordAttemptInput{
    Correct:     req.Correct,
    TimeMinutes: req.TimeMinutes,
  })
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, record)
}

func (mh *MasteryHandler) MaterialSummary(c *gin.Context) {
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
  summary, err := mh.masteryService.MaterialSummary(c.Request.Context(), userID, materialID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, summary)
}
