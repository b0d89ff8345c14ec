package services

import (
  "github.com/google/uuid"

  "github.com/yungbote/prepgraph-backend/internal/sse"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

// JobNotifier pushes processing lifecycle events to the owning user's SSE
// channel. All sends are fire-and-forget.
type JobNotifier interface {
  JobProgress(userID uuid.UUID, run *types.ProcessingRun, stage string, progress int, message string)
  JobFailed(userID uuid.UUID, run *types.ProcessingRun, stage string, errorMessage string)
  JobDone(userID uuid.UUID, run *types.ProcessingRun)
}

type jobNotifier struct {
  hub *sse.SSEHub
}

func NewJobNotifier(hub *sse.SSEHub) JobNotifier {
  return &jobNotifier{hub: hub}
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, run *types.ProcessingRun, stage string, progress int, message string) {
  if n == nil || n.hub == nil || userID == uuid.Nil {
    return
  }
  n.hub.Broadcast(sse.SSEMessage{
    Channel: userID.String(),
    Event:   sse.SSEEventProcessingProgress,
    Data: map[string]any{
      "run_id":   safeRunID(run),
      "stage":    stage,
      "progress": progress,
      "message":  message,
    },
  })
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, run *types.ProcessingRun, stage string, errorMessage string) {
  if n == nil || n.hub == nil || userID == uuid.Nil {
    return
  }
  n.hub.Broadcast(sse.SSEMessage{
    Channel: userID.String(),
    Event:   sse.SSEEventProcessingFailed,
    Data: map[string]any{
      "run_id": safeRunID(run),
      "stage":  stage,
      "error":  errorMessage,
    },
  })
}

func (n *jobNotifier) JobDone(userID uuid.UUID, run *types.ProcessingRun) {
  if n == nil || n.hub == nil || userID == uuid.Nil {
    return
  }
  n.hub.Broadcast(sse.SSEMessage{
    Channel: userID.String(),
    Event:   sse.SSEEventProcessingDone,
    Data: map[string]any{
      "run_id":            safeRunID(run),
      "study_material_id": safeMaterialID(run),
    },
  })
}

func safeRunID(run *types.ProcessingRun) string {
  if run == nil {
    return ""
  }
  return run.ID.String()
}

func safeMaterialID(run *types.ProcessingRun) string {
  if run == nil {
    return ""
  }
  return run.StudyMaterialID.String()
}
