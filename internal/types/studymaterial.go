package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Processing status values for StudyMaterial.
const (
  MaterialStatusPending    = "pending"
  MaterialStatusProcessing = "processing"
  MaterialStatusCompleted  = "completed"
  MaterialStatusFailed     = "failed"
)

type StudyMaterial struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
  User            *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Title           string          `gorm:"column:title;not null" json:"title"`
  OriginalName    string          `gorm:"column:original_name" json:"original_name"`
  MimeType        string          `gorm:"column:mime_type" json:"mime_type"`
  SizeBytes       int64           `gorm:"column:size_bytes" json:"size_bytes"`
  StorageKey      string          `gorm:"column:storage_key;not null" json:"storage_key"`
  FileURL         string          `gorm:"column:file_url" json:"file_url"`
  ProcessingStatus string         `gorm:"column:processing_status;not null;default:'pending';index" json:"processing_status"`
  ExtractedText   string          `gorm:"column:extracted_text" json:"extracted_text,omitempty"`
  PageCount       int             `gorm:"column:page_count" json:"page_count"`
  QuestionsCount  int             `gorm:"column:questions_count;not null;default:0" json:"questions_count"`
  ErrorMessage    string          `gorm:"column:error_message" json:"error_message,omitempty"`
  GraphMetadata   datatypes.JSON  `gorm:"column:graph_metadata;type:jsonb" json:"graph_metadata"`
  GraphError      string          `gorm:"column:graph_error" json:"graph_error,omitempty"`
  ProcessedAt     *time.Time      `gorm:"column:processed_at" json:"processed_at,omitempty"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (StudyMaterial) TableName() string {
  return "study_material"
}
