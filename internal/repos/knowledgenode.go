package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

// NodeFilter narrows graph reads. Nil/empty fields are ignored.
type NodeFilter struct {
  Difficulty *int
  Level      string
}

type KnowledgeNodeRepo interface {
  // UpsertByName inserts nodes keyed by (study_material_id, name); existing
  // rows get their level/difficulty/importance refreshed instead of
  // duplicating. Returned rows carry the persisted IDs.
  UpsertByName(ctx context.Context, tx *gorm.DB, nodes []*types.KnowledgeNode) ([]*types.KnowledgeNode, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.KnowledgeNode, error)
  GetByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) ([]*types.KnowledgeNode, error)
  GetFiltered(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, filter NodeFilter) ([]*types.KnowledgeNode, error)
}

type knowledgeNodeRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewKnowledgeNodeRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeNodeRepo {
  repoLog := baseLog.With("repo", "KnowledgeNodeRepo")
  return &knowledgeNodeRepo{db: db, log: repoLog}
}

func (r *knowledgeNodeRepo) UpsertByName(ctx context.Context, tx *gorm.DB, nodes []*types.KnowledgeNode) ([]*types.KnowledgeNode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(nodes) == 0 {
    return []*types.KnowledgeNode{}, nil
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "study_material_id"}, {Name: "name"}},
      DoUpdates: clause.AssignmentColumns([]string{"level", "difficulty", "importance", "active", "updated_at"}),
    }).
    Create(&nodes).Error; err != nil {
    return nil, err
  }

  // Re-read so callers see canonical IDs for rows that already existed.
  materialID := nodes[0].StudyMaterialID
  names := make([]string, 0, len(nodes))
  for _, n := range nodes {
    if n != nil {
      names = append(names, n.Name)
    }
  }
  var results []*types.KnowledgeNode
  if err := transaction.WithContext(ctx).
    Where("study_material_id = ? AND name IN ?", materialID, names).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *knowledgeNodeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.KnowledgeNode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeNode
  if len(nodeIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", nodeIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *knowledgeNodeRepo) GetByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) ([]*types.KnowledgeNode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeNode
  if materialID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("study_material_id = ? AND active = ?", materialID, true).
    Order("name ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *knowledgeNodeRepo) GetFiltered(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, filter NodeFilter) ([]*types.KnowledgeNode, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeNode
  if materialID == uuid.Nil {
    return results, nil
  }
  q := transaction.WithContext(ctx).
    Where("study_material_id = ? AND active = ?", materialID, true)
  if filter.Difficulty != nil {
    q = q.Where("difficulty = ?", *filter.Difficulty)
  }
  if filter.Level != "" {
    q = q.Where("level = ?", filter.Level)
  }
  if err := q.Order("name ASC").Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
