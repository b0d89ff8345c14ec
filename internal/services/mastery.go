package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

type RecordAttemptInput struct {
  Correct     bool
  TimeMinutes int
}

// MasterySummary aggregates a user's mastery across one material's nodes.
type MasterySummary struct {
  TotalNodes       int     `json:"total_nodes"`
  MasteredNodes    int     `json:"mastered_nodes"`
  LearningNodes    int     `json:"learning_nodes"`
  WeakNodes        int     `json:"weak_nodes"`
  UntestedNodes    int     `json:"untested_nodes"`
  AverageMastery   float64 `json:"average_mastery"`
  TotalAttempts    int     `json:"total_attempts"`
  TotalTimeMinutes int     `json:"total_time_minutes"`
}

type UserMasteryService interface {
  // GetOrCreate returns the mastery record for (user, node), lazily creating
  // an untested one on first access.
  GetOrCreate(ctx context.Context, userID uuid.UUID, nodeID uuid.UUID) (*types.UserMastery, error)
  RecordAttempt(ctx context.Context, userID uuid.UUID, nodeID uuid.UUID, input RecordAttemptInput) (*types.UserMastery, error)
  MaterialSummary(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MasterySummary, error)
}

type userMasteryService struct {
  log          *logger.Logger
  masteryRepo  repos.UserMasteryRepo
  nodeRepo     repos.KnowledgeNodeRepo
  materialRepo repos.StudyMaterialRepo
}

func NewUserMasteryService(
  baseLog *logger.Logger,
  masteryRepo repos.UserMasteryRepo,
  nodeRepo repos.KnowledgeNodeRepo,
  materialRepo repos.StudyMaterialRepo,
) UserMasteryService {
  return &userMasteryService{
    log:          baseLog.With("service", "UserMasteryService"),
    masteryRepo:  masteryRepo,
    nodeRepo:     nodeRepo,
    materialRepo: materialRepo,
  }
}

// deriveMastery maps a mastery level onto (status, color).
func deriveMastery(level float64) (string, string) {
  switch {
  case level >= 0.8:
    return types.MasteryStatusMastered, types.MasteryColorGreen
  case level >= 0.5:
    return types.MasteryStatusLearning, types.MasteryColorYellow
  case level > 0:
    return types.MasteryStatusWeak, types.MasteryColorRed
  default:
    return types.MasteryStatusUntested, types.MasteryColorGray
  }
}

func (s *userMasteryService) GetOrCreate(ctx context.Context, userID uuid.UUID, nodeID uuid.UUID) (*types.UserMastery, error) {
  nodes, err := s.nodeRepo.GetByIDs(ctx, nil, []uuid.UUID{nodeID})
  if err != nil {
    return nil, fmt.Errorf("load knowledge node: %w", err)
  }
  if len(nodes) == 0 || nodes[0] == nil {
    return nil, apperr.ErrNotFound
  }
  if err := s.assertMaterialOwned(ctx, userID, nodes[0].StudyMaterialID); err != nil {
    return nil, err
  }

  existing, err := s.masteryRepo.GetByUserAndNode(ctx, nil, userID, nodeID)
  if err != nil {
    return nil, fmt.Errorf("load mastery: %w", err)
  }
  if existing != nil {
    return existing, nil
  }

  record := &types.UserMastery{
    ID:              uuid.New(),
    UserID:          userID,
    KnowledgeNodeID: nodeID,
    MasteryLevel:    0,
    Status:          types.MasteryStatusUntested,
    Color:           types.MasteryColorGray,
  }
  if _, err := s.masteryRepo.Create(ctx, nil, []*types.UserMastery{record}); err != nil {
    return nil, fmt.Errorf("create mastery: %w", err)
  }
  return record, nil
}

func (s *userMasteryService) RecordAttempt(ctx context.Context, userID uuid.UUID, nodeID uuid.UUID, input RecordAttemptInput) (*types.UserMastery, error) {
  if input.TimeMinutes < 0 {
    return nil, fmt.Errorf("%w: time_minutes must be non-negative", apperr.ErrInvalidArgument)
  }
  record, err := s.GetOrCreate(ctx, userID, nodeID)
  if err != nil {
    return nil, err
  }

  record.Attempts++
  if input.Correct {
    record.CorrectAttempts++
  }
  record.TotalTimeMinutes += input.TimeMinutes
  record.MasteryLevel = float64(record.CorrectAttempts) / float64(record.Attempts)
  record.Status, record.Color = deriveMastery(record.MasteryLevel)
  now := time.Now()
  record.LastTestedAt = &now

  if err := s.masteryRepo.UpdateFields(ctx, nil, record.ID, map[string]interface{}{
    "attempts":           record.Attempts,
    "correct_attempts":   record.CorrectAttempts,
    "total_time_minutes": record.TotalTimeMinutes,
    "mastery_level":      record.MasteryLevel,
    "status":             record.Status,
    "color":              record.Color,
    "last_tested_at":     now,
  }); err != nil {
    return nil, fmt.Errorf("update mastery: %w", err)
  }
  return record, nil
}

func (s *userMasteryService) MaterialSummary(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MasterySummary, error) {
  if err := s.assertMaterialOwned(ctx, userID, materialID); err != nil {
    return nil, err
  }
  nodes, err := s.nodeRepo.GetByStudyMaterialID(ctx, nil, materialID)
  if err != nil {
    return nil, fmt.Errorf("load knowledge nodes: %w", err)
  }

  summary := &MasterySummary{TotalNodes: len(nodes)}
  if len(nodes) == 0 {
    return summary, nil
  }

  nodeIDs := make([]uuid.UUID, 0, len(nodes))
  for _, n := range nodes {
    nodeIDs = append(nodeIDs, n.ID)
  }
  masteries, err := s.masteryRepo.GetByUserAndNodeIDs(ctx, nil, userID, nodeIDs)
  if err != nil {
    return nil, fmt.Errorf("load masteries: %w", err)
  }
  byNode := make(map[uuid.UUID]*types.UserMastery, len(masteries))
  for _, m := range masteries {
    if m != nil {
      byNode[m.KnowledgeNodeID] = m
    }
  }

  var levelSum float64
  for _, n := range nodes {
    m := byNode[n.ID]
    status := types.MasteryStatusUntested
    if m != nil {
      status = m.Status
      levelSum += m.MasteryLevel
      summary.TotalAttempts += m.Attempts
      summary.TotalTimeMinutes += m.TotalTimeMinutes
    }
    switch status {
    case types.MasteryStatusMastered:
      summary.MasteredNodes++
    case types.MasteryStatusLearning:
      summary.LearningNodes++
    case types.MasteryStatusWeak:
      summary.WeakNodes++
    default:
      summary.UntestedNodes++
    }
  }
  summary.AverageMastery = round2(levelSum / float64(len(nodes)))
  return summary, nil
}

func (s *userMasteryService) assertMaterialOwned(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) error {
  materials, err := s.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    return fmt.Errorf("load study material: %w", err)
  }
  if len(materials) == 0 || materials[0] == nil || materials[0].UserID != userID {
    return apperr.ErrUnauthorized
  }
  return nil
}
