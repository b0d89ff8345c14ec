package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type StudyMaterialRepo interface {
  Create(ctx context.Context, tx *gorm.DB, materials []*types.StudyMaterial) ([]*types.StudyMaterial, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.StudyMaterial, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StudyMaterial, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, updates map[string]interface{}) error
  SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) error
}

type studyMaterialRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStudyMaterialRepo(db *gorm.DB, baseLog *logger.Logger) StudyMaterialRepo {
  repoLog := baseLog.With("repo", "StudyMaterialRepo")
  return &studyMaterialRepo{db: db, log: repoLog}
}

func (r *studyMaterialRepo) Create(ctx context.Context, tx *gorm.DB, materials []*types.StudyMaterial) ([]*types.StudyMaterial, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(materials) == 0 {
    return []*types.StudyMaterial{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&materials).Error; err != nil {
    return nil, err
  }
  return materials, nil
}

func (r *studyMaterialRepo) GetByIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.StudyMaterial, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.StudyMaterial
  if len(materialIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", materialIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *studyMaterialRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StudyMaterial, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.StudyMaterial
  if userID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *studyMaterialRepo) UpdateFields(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if materialID == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.StudyMaterial{}).
    Where("id = ?", materialID).
    Updates(updates).Error
}

func (r *studyMaterialRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(materialIDs) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("id IN ?", materialIDs).
    Delete(&types.StudyMaterial{}).Error
}
