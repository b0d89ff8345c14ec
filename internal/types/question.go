package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Question type values.
const (
  QuestionTypeMultipleChoice = "multiple_choice"
  QuestionTypeTrueFalse      = "true_false"
  QuestionTypeShortAnswer    = "short_answer"
)

type Question struct {
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  StudyMaterialID uuid.UUID       `gorm:"type:uuid;not null;index" json:"study_material_id"`
  StudyMaterial   *StudyMaterial  `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudyMaterialID;references:ID" json:"study_material,omitempty"`
  Content         string          `gorm:"column:content;not null" json:"content"`
  QuestionType    string          `gorm:"column:question_type;not null;default:'multiple_choice'" json:"question_type"`
  Difficulty      int             `gorm:"column:difficulty;not null;default:3" json:"difficulty"`
  Topic           string          `gorm:"column:topic" json:"topic"`
  Explanation     string          `gorm:"column:explanation" json:"explanation"`
  CorrectAnswer   string          `gorm:"column:correct_answer" json:"correct_answer"`
  Embedding       datatypes.JSON  `gorm:"column:embedding;type:jsonb" json:"embedding,omitempty"`
  Options         []*QuestionOption `gorm:"foreignKey:QuestionID;references:ID" json:"options,omitempty"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string {
  return "question"
}

type QuestionOption struct {
  ID          uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  QuestionID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"question_id"`
  Question    *Question       `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
  Index       int             `gorm:"column:index;not null" json:"index"`
  Content     string          `gorm:"column:content;not null" json:"content"`
  IsCorrect   bool            `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
  CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time       `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuestionOption) TableName() string {
  return "question_option"
}
