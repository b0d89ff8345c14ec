package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type ProcessingRunRepo interface {
  Create(ctx context.Context, tx *gorm.DB, runs []*types.ProcessingRun) ([]*types.ProcessingRun, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ProcessingRun, error)

  // Latest run for a material (used by /api/study-materials/:id).
  GetLatestByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.ProcessingRun, error)

  // Claims the next run that is runnable:
  // - status=queued
  // - OR status=failed and attempts < maxAttempts and last_error_at older than retryDelay (or NULL)
  // - OR status=running but heartbeat is stale (crash recovery)
  ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.ProcessingRun, error)

  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type processingRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProcessingRunRepo(db *gorm.DB, baseLog *logger.Logger) ProcessingRunRepo {
  repoLog := baseLog.With("repo", "ProcessingRunRepo")
  return &processingRunRepo{db: db, log: repoLog}
}

func (r *processingRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.ProcessingRun) ([]*types.ProcessingRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(runs) == 0 {
    return []*types.ProcessingRun{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&runs).Error; err != nil {
    return nil, err
  }
  return runs, nil
}

func (r *processingRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ProcessingRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.ProcessingRun
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *processingRunRepo) GetLatestByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.ProcessingRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if materialID == uuid.Nil {
    return nil, nil
  }

  var run types.ProcessingRun
  err := transaction.WithContext(ctx).
    Where("study_material_id = ?", materialID).
    Order("created_at DESC").
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *processingRunRepo) ClaimNextRunnable(
  ctx context.Context,
  tx *gorm.DB,
  maxAttempts int,
  retryDelay time.Duration,
  staleRunning time.Duration,
) (*types.ProcessingRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  now := time.Now()
  retryCutoff := now.Add(-retryDelay)
  staleCutoff := now.Add(-staleRunning)

  var claimed *types.ProcessingRun

  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var run types.ProcessingRun

    q := txx.
      Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
      Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.RunStatusQueued, types.RunStatusFailed, maxAttempts, retryCutoff, types.RunStatusRunning, staleCutoff).
      Order("created_at ASC")

    qErr := q.First(&run).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }

    // Claim it: mark running, increment attempts, set lock/heartbeat.
    uErr := txx.Model(&types.ProcessingRun{}).
      Where("id = ?", run.ID).
      Updates(map[string]interface{}{
        "status":       types.RunStatusRunning,
        "attempts":     gorm.Expr("attempts + 1"),
        "locked_at":    now,
        "heartbeat_at": now,
        "updated_at":   now,
      }).Error
    if uErr != nil {
      return uErr
    }

    claimed = &run
    return nil
  })

  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *processingRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.ProcessingRun{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *processingRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ProcessingRun{}).
    Where("id = ? AND status = ?", id, types.RunStatusRunning).
    Updates(map[string]interface{}{
      "heartbeat_at": now,
      "updated_at":   now,
    }).Error
}
