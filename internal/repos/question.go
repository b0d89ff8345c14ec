package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type QuestionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error)
  GetByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.Question, error)
  CountByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (int64, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, updates map[string]interface{}) error
  SoftDeleteByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) error
}

type questionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
  repoLog := baseLog.With("repo", "QuestionRepo")
  return &questionRepo{db: db, log: repoLog}
}

func (r *questionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(questions) == 0 {
    return []*types.Question{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&questions).Error; err != nil {
    return nil, err
  }
  return questions, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Question
  if len(questionIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", questionIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) GetByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.Question, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Question
  if len(materialIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("study_material_id IN ?", materialIDs).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionRepo) CountByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if materialID == uuid.Nil {
    return 0, nil
  }
  if err := transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("study_material_id = ?", materialID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *questionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, questionID uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if questionID == uuid.Nil || len(updates) == 0 {
    return nil
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.Question{}).
    Where("id = ?", questionID).
    Updates(updates).Error
}

func (r *questionRepo) SoftDeleteByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(materialIDs) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("study_material_id IN ?", materialIDs).
    Delete(&types.Question{}).Error
}
