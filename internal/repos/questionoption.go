package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type QuestionOptionRepo interface {
  Create(ctx context.Context, tx *gorm.DB, options []*types.QuestionOption) ([]*types.QuestionOption, error)
  GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionOption, error)
  SoftDeleteByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error
}

type questionOptionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQuestionOptionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionOptionRepo {
  repoLog := baseLog.With("repo", "QuestionOptionRepo")
  return &questionOptionRepo{db: db, log: repoLog}
}

func (r *questionOptionRepo) Create(ctx context.Context, tx *gorm.DB, options []*types.QuestionOption) ([]*types.QuestionOption, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(options) == 0 {
    return []*types.QuestionOption{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&options).Error; err != nil {
    return nil, err
  }
  return options, nil
}

func (r *questionOptionRepo) GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionOption, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.QuestionOption
  if len(questionIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("question_id IN ?", questionIDs).
    Order("index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionOptionRepo) SoftDeleteByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(questionIDs) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("question_id IN ?", questionIDs).
    Delete(&types.QuestionOption{}).Error
}
