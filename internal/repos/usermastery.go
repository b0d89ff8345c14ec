package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type UserMasteryRepo interface {
  Create(ctx context.Context, tx *gorm.DB, masteries []*types.UserMastery) ([]*types.UserMastery, error)
  GetByUserAndNode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeID uuid.UUID) (*types.UserMastery, error)
  GetByUserAndNodeIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeIDs []uuid.UUID) ([]*types.UserMastery, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, masteryID uuid.UUID, updates map[string]interface{}) error
}

type userMasteryRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserMasteryRepo(db *gorm.DB, baseLog *logger.Logger) UserMasteryRepo {
  repoLog := baseLog.With("repo", "UserMasteryRepo")
  return &userMasteryRepo{db: db, log: repoLog}
}

func (r *userMasteryRepo) Create(ctx context.Context, tx *gorm.DB, masteries []*types.UserMastery) ([]*types.UserMastery, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(masteries) == 0 {
    return []*types.UserMastery{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&masteries).Error; err != nil {
    return nil, err
  }
  return masteries, nil
}

func (r *userMasteryRepo) GetByUserAndNode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeID uuid.UUID) (*types.UserMastery, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == uuid.Nil || nodeID == uuid.Nil {
    return nil, nil
  }
  var mastery types.UserMastery
  err := transaction.WithContext(ctx).
    Where("user_id = ? AND knowledge_node_id = ?", userID, nodeID).
    First(&mastery).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &mastery, nil
}

func (r *userMasteryRepo) GetByUserAndNodeIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeIDs []uuid.UUID) ([]*types.UserMastery, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.UserMastery
  if userID == uuid.Nil || len(nodeIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND knowledge_node_id IN ?", userID, nodeIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *userMasteryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, masteryID uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if masteryID == uuid.Nil || len(updates) == 0 {
    return nil
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.UserMastery{}).
    Where("id = ?", masteryID).
    Updates(updates).Error
}
