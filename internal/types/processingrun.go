package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Run status and stage values for the PDF processing pipeline.
const (
  RunStatusQueued    = "queued"
  RunStatusRunning   = "running"
  RunStatusSucceeded = "succeeded"
  RunStatusFailed    = "failed"

  RunStageOCR     = "ocr"
  RunStageExtract = "extract"
  RunStageEmbed   = "embed"
  RunStageGraph   = "graph"
  RunStageDone    = "done"
)

type ProcessingRun struct {
  ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
  StudyMaterialID uuid.UUID      `gorm:"type:uuid;not null;index" json:"study_material_id"`

  Status   string `gorm:"column:status;not null;index" json:"status"` // queued|running|succeeded|failed
  Stage    string `gorm:"column:stage;not null;index" json:"stage"`   // ocr|extract|embed|graph|done
  Progress int    `gorm:"column:progress;not null;default:0" json:"progress"`

  Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
  Error       string     `gorm:"column:error" json:"error"`
  LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

  // Locking/health for workers
  LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
  HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`

  Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`

  CreatedAt time.Time  `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt time.Time  `gorm:"not null;default:now();index" json:"updated_at"`
  DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProcessingRun) TableName() string {
  return "processing_run"
}
