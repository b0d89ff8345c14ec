package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type KnowledgeEdgeRepo interface {
  // Upsert inserts edges keyed by (node_id, related_node_id,
  // relationship_type); existing rows get weight/reasoning refreshed.
  Upsert(ctx context.Context, tx *gorm.DB, edges []*types.KnowledgeEdge) ([]*types.KnowledgeEdge, error)
  GetByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.KnowledgeEdge, error)
}

type knowledgeEdgeRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewKnowledgeEdgeRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeEdgeRepo {
  repoLog := baseLog.With("repo", "KnowledgeEdgeRepo")
  return &knowledgeEdgeRepo{db: db, log: repoLog}
}

func (r *knowledgeEdgeRepo) Upsert(ctx context.Context, tx *gorm.DB, edges []*types.KnowledgeEdge) ([]*types.KnowledgeEdge, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(edges) == 0 {
    return []*types.KnowledgeEdge{}, nil
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "node_id"}, {Name: "related_node_id"}, {Name: "relationship_type"}},
      DoUpdates: clause.AssignmentColumns([]string{"weight", "reasoning", "active", "updated_at"}),
    }).
    Create(&edges).Error; err != nil {
    return nil, err
  }
  return edges, nil
}

// GetByNodeIDs returns edges touching any of the given nodes, either end.
func (r *knowledgeEdgeRepo) GetByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.KnowledgeEdge, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.KnowledgeEdge
  if len(nodeIDs) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("active = ? AND (node_id IN ? OR related_node_id IN ?)", true, nodeIDs, nodeIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
