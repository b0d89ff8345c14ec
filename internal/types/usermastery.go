package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Mastery status values and their display colors.
const (
  MasteryStatusMastered = "mastered"
  MasteryStatusLearning = "learning"
  MasteryStatusWeak     = "weak"
  MasteryStatusUntested = "untested"

  MasteryColorGreen  = "green"
  MasteryColorYellow = "yellow"
  MasteryColorRed    = "red"
  MasteryColorGray   = "gray"
)

type UserMastery struct {
  ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_node,unique" json:"user_id"`
  User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  KnowledgeNodeID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_node,unique" json:"knowledge_node_id"`
  KnowledgeNode    *KnowledgeNode `gorm:"constraint:OnDelete:CASCADE;foreignKey:KnowledgeNodeID;references:ID" json:"knowledge_node,omitempty"`
  MasteryLevel     float64        `gorm:"column:mastery_level;not null;default:0" json:"mastery_level"`
  Status           string         `gorm:"column:status;not null;default:'untested'" json:"status"`
  Color            string         `gorm:"column:color;not null;default:'gray'" json:"color"`
  Attempts         int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
  CorrectAttempts  int            `gorm:"column:correct_attempts;not null;default:0" json:"correct_attempts"`
  TotalTimeMinutes int            `gorm:"column:total_time_minutes;not null;default:0" json:"total_time_minutes"`
  LastTestedAt     *time.Time     `gorm:"column:last_tested_at" json:"last_tested_at,omitempty"`
  CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserMastery) TableName() string { return "user_mastery" }
