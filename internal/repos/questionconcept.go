package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type QuestionConceptRepo interface {
  // Upsert inserts links keyed by (question_id, knowledge_node_id).
  Upsert(ctx context.Context, tx *gorm.DB, links []*types.QuestionConcept) ([]*types.QuestionConcept, error)
  GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionConcept, error)
  GetByKnowledgeNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.QuestionConcept, error)
}

type questionConceptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQuestionConceptRepo(db *gorm.DB, baseLog *logger.Logger) QuestionConceptRepo {
  repoLog := baseLog.With("repo", "QuestionConceptRepo")
  return &questionConceptRepo{db: db, log: repoLog}
}

func (r *questionConceptRepo) Upsert(ctx context.Context, tx *gorm.DB, links []*types.QuestionConcept) ([]*types.QuestionConcept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(links) == 0 {
    return []*types.QuestionConcept{}, nil
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "question_id"}, {Name: "knowledge_node_id"}},
      DoUpdates: clause.AssignmentColumns([]string{"importance_level", "relevance_score", "is_primary_concept", "extraction_method", "updated_at"}),
    }).
    Create(&links).Error; err != nil {
    return nil, err
  }
  return links, nil
}

func (r *questionConceptRepo) GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionConcept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.QuestionConcept
  if len(questionIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("question_id IN ?", questionIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *questionConceptRepo) GetByKnowledgeNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.QuestionConcept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.QuestionConcept
  if len(nodeIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("knowledge_node_id IN ?", nodeIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
