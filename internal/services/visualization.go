package services

import (
  "context"
  "fmt"
  "math"
  "sort"

  "github.com/google/uuid"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

// GraphNode is a knowledge node annotated with the requesting user's mastery.
type GraphNode struct {
  ID           uuid.UUID `json:"id"`
  Name         string    `json:"name"`
  Level        string    `json:"level"`
  Difficulty   int       `json:"difficulty"`
  Importance   int       `json:"importance"`
  MasteryLevel float64   `json:"mastery_level"`
  Status       string    `json:"status"`
  Color        string    `json:"color"`
}

type GraphEdge struct {
  ID               uuid.UUID `json:"id"`
  Source           uuid.UUID `json:"source"`
  Target           uuid.UUID `json:"target"`
  RelationshipType string    `json:"relationship_type"`
  Weight           float64   `json:"weight"`
}

type GraphData struct {
  Nodes []*GraphNode `json:"nodes"`
  Edges []*GraphEdge `json:"edges"`
}

// NodeDetail expands a single node with its linked questions, neighbors and a
// suggested learning path of weak prerequisites.
type NodeDetail struct {
  Node          *GraphNode        `json:"node"`
  Questions     []*types.Question `json:"questions"`
  Related       []*GraphNode      `json:"related_nodes"`
  Prerequisites []string          `json:"prerequisites"`
  Dependents    []string          `json:"dependents"`
  LearningPath  []*GraphNode      `json:"learning_path"`
}

type GraphStatistics struct {
  TotalNodes        int     `json:"total_nodes"`
  TotalEdges        int     `json:"total_edges"`
  MasteredCount     int     `json:"mastered_count"`
  LearningCount     int     `json:"learning_count"`
  WeakCount         int     `json:"weak_count"`
  UntestedCount     int     `json:"untested_count"`
  MasteredPercent   float64 `json:"mastered_percent"`
  LearningPercent   float64 `json:"learning_percent"`
  WeakPercent       float64 `json:"weak_percent"`
  UntestedPercent   float64 `json:"untested_percent"`
  OverallProgress   float64 `json:"overall_progress"`
  AverageMastery    float64 `json:"average_mastery"`
  AverageDifficulty float64 `json:"average_difficulty"`
}

// NodeQuery narrows FilterNodes. Nil/empty fields are ignored.
type NodeQuery struct {
  Difficulty *int
  Level      string
  Status     string
  Color      string
}

type VisualizationService interface {
  GraphData(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*GraphData, error)
  NodeDetail(ctx context.Context, userID uuid.UUID, materialID uuid.UUID, nodeID uuid.UUID) (*NodeDetail, error)
  Statistics(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*GraphStatistics, error)
  FilterNodes(ctx context.Context, userID uuid.UUID, materialID uuid.UUID, query NodeQuery) ([]*GraphNode, error)
}

type visualizationService struct {
  log          *logger.Logger
  materialRepo repos.StudyMaterialRepo
  nodeRepo     repos.KnowledgeNodeRepo
  edgeRepo     repos.KnowledgeEdgeRepo
  conceptRepo  repos.QuestionConceptRepo
  questionRepo repos.QuestionRepo
  masteryRepo  repos.UserMasteryRepo
}

func NewVisualizationService(
  baseLog *logger.Logger,
  materialRepo repos.StudyMaterialRepo,
  nodeRepo repos.KnowledgeNodeRepo,
  edgeRepo repos.KnowledgeEdgeRepo,
  conceptRepo repos.QuestionConceptRepo,
  questionRepo repos.QuestionRepo,
  masteryRepo repos.UserMasteryRepo,
) VisualizationService {
  return &visualizationService{
    log:          baseLog.With("service", "VisualizationService"),
    materialRepo: materialRepo,
    nodeRepo:     nodeRepo,
    edgeRepo:     edgeRepo,
    conceptRepo:  conceptRepo,
    questionRepo: questionRepo,
    masteryRepo:  masteryRepo,
  }
}

const learningPathLimit = 5

func round2(v float64) float64 {
  return math.Round(v*100) / 100
}

func (s *visualizationService) GraphData(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*GraphData, error) {
  if err := s.assertMaterialOwned(ctx, userID, materialID); err != nil {
    return nil, err
  }
  nodes, err := s.nodeRepo.GetByStudyMaterialID(ctx, nil, materialID)
  if err != nil {
    return nil, fmt.Errorf("load knowledge nodes: %w", err)
  }

  graphNodes, byID, err := s.annotateNodes(ctx, userID, nodes)
  if err != nil {
    return nil, err
  }

  nodeIDs := make([]uuid.UUID, 0, len(nodes))
  for _, n := range nodes {
    nodeIDs = append(nodeIDs, n.ID)
  }
  edges, err := s.edgeRepo.GetByNodeIDs(ctx, nil, nodeIDs)
  if err != nil {
    return nil, fmt.Errorf("load knowledge edges: %w", err)
  }
  graphEdges := make([]*GraphEdge, 0, len(edges))
  for _, e := range edges {
    if e == nil {
      continue
    }
    // Drop edges whose endpoints were filtered out of this material's set.
    if byID[e.NodeID] == nil || byID[e.RelatedNodeID] == nil {
      continue
    }
    graphEdges = append(graphEdges, &GraphEdge{
      ID:               e.ID,
      Source:           e.NodeID,
      Target:           e.RelatedNodeID,
      RelationshipType: e.RelationshipType,
      Weight:           e.Weight,
    })
  }

  return &GraphData{Nodes: graphNodes, Edges: graphEdges}, nil
}

func (s *visualizationService) NodeDetail(ctx context.Context, userID uuid.UUID, materialID uuid.UUID, nodeID uuid.UUID) (*NodeDetail, error) {
  if err := s.assertMaterialOwned(ctx, userID, materialID); err != nil {
    return nil, err
  }
  nodes, err := s.nodeRepo.GetByIDs(ctx, nil, []uuid.UUID{nodeID})
  if err != nil {
    return nil, fmt.Errorf("load knowledge node: %w", err)
  }
  if len(nodes) == 0 || nodes[0] == nil || nodes[0].StudyMaterialID != materialID {
    return nil, apperr.ErrNotFound
  }
  node := nodes[0]

  annotated, _, err := s.annotateNodes(ctx, userID, []*types.KnowledgeNode{node})
  if err != nil {
    return nil, err
  }

  // Questions directly linked to this node.
  links, err := s.conceptRepo.GetByKnowledgeNodeIDs(ctx, nil, []uuid.UUID{nodeID})
  if err != nil {
    return nil, fmt.Errorf("load question links: %w", err)
  }
  questionIDs := make([]uuid.UUID, 0, len(links))
  for _, l := range links {
    if l != nil {
      questionIDs = append(questionIDs, l.QuestionID)
    }
  }
  questions, err := s.questionRepo.GetByIDs(ctx, nil, questionIDs)
  if err != nil {
    return nil, fmt.Errorf("load questions: %w", err)
  }

  // Neighbors over any edge touching this node.
  edges, err := s.edgeRepo.GetByNodeIDs(ctx, nil, []uuid.UUID{nodeID})
  if err != nil {
    return nil, fmt.Errorf("load knowledge edges: %w", err)
  }
  neighborIDs := make([]uuid.UUID, 0, len(edges))
  prerequisiteIDs := make([]uuid.UUID, 0, len(edges))
  dependentIDs := make([]uuid.UUID, 0, len(edges))
  seen := map[uuid.UUID]bool{nodeID: true}
  for _, e := range edges {
    if e == nil {
      continue
    }
    other := e.RelatedNodeID
    if other == nodeID {
      other = e.NodeID
    }
    if !seen[other] {
      seen[other] = true
      neighborIDs = append(neighborIDs, other)
    }
    // prerequisite edges point prerequisite -> dependent.
    if e.RelationshipType == types.EdgePrerequisite {
      if e.RelatedNodeID == nodeID {
        prerequisiteIDs = append(prerequisiteIDs, e.NodeID)
      } else if e.NodeID == nodeID {
        dependentIDs = append(dependentIDs, e.RelatedNodeID)
      }
    }
  }

  neighborNodes, err := s.nodeRepo.GetByIDs(ctx, nil, neighborIDs)
  if err != nil {
    return nil, fmt.Errorf("load related nodes: %w", err)
  }
  related, relatedByID, err := s.annotateNodes(ctx, userID, neighborNodes)
  if err != nil {
    return nil, err
  }

  prerequisiteNames := make([]string, 0, len(prerequisiteIDs))
  for _, id := range prerequisiteIDs {
    if gn := relatedByID[id]; gn != nil {
      prerequisiteNames = append(prerequisiteNames, gn.Name)
    }
  }
  dependentNames := make([]string, 0, len(dependentIDs))
  for _, id := range dependentIDs {
    if gn := relatedByID[id]; gn != nil {
      dependentNames = append(dependentNames, gn.Name)
    }
  }

  // Learning path: weak prerequisites the user should revisit first.
  path := make([]*GraphNode, 0, len(prerequisiteIDs))
  for _, id := range prerequisiteIDs {
    gn := relatedByID[id]
    if gn != nil && gn.Color == types.MasteryColorRed {
      path = append(path, gn)
    }
  }
  sort.Slice(path, func(i, j int) bool {
    if path[i].Importance != path[j].Importance {
      return path[i].Importance > path[j].Importance
    }
    return path[i].Name < path[j].Name
  })
  if len(path) > learningPathLimit {
    path = path[:learningPathLimit]
  }

  return &NodeDetail{
    Node:          annotated[0],
    Questions:     questions,
    Related:       related,
    Prerequisites: prerequisiteNames,
    Dependents:    dependentNames,
    LearningPath:  path,
  }, nil
}

func (s *visualizationService) Statistics(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*GraphStatistics, error) {
  if err := s.assertMaterialOwned(ctx, userID, materialID); err != nil {
    return nil, err
  }
  nodes, err := s.nodeRepo.GetByStudyMaterialID(ctx, nil, materialID)
  if err != nil {
    return nil, fmt.Errorf("load knowledge nodes: %w", err)
  }

  stats := &GraphStatistics{TotalNodes: len(nodes)}
  if len(nodes) == 0 {
    return stats, nil
  }

  annotated, _, err := s.annotateNodes(ctx, userID, nodes)
  if err != nil {
    return nil, err
  }

  nodeIDs := make([]uuid.UUID, 0, len(nodes))
  for _, n := range nodes {
    nodeIDs = append(nodeIDs, n.ID)
  }
  edges, err := s.edgeRepo.GetByNodeIDs(ctx, nil, nodeIDs)
  if err != nil {
    return nil, fmt.Errorf("load knowledge edges: %w", err)
  }
  stats.TotalEdges = len(edges)

  var masterySum, difficultySum float64
  for _, gn := range annotated {
    masterySum += gn.MasteryLevel
    difficultySum += float64(gn.Difficulty)
    switch gn.Status {
    case types.MasteryStatusMastered:
      stats.MasteredCount++
    case types.MasteryStatusLearning:
      stats.LearningCount++
    case types.MasteryStatusWeak:
      stats.WeakCount++
    default:
      stats.UntestedCount++
    }
  }

  total := float64(len(annotated))
  stats.MasteredPercent = round2(float64(stats.MasteredCount) / total * 100)
  stats.LearningPercent = round2(float64(stats.LearningCount) / total * 100)
  stats.WeakPercent = round2(float64(stats.WeakCount) / total * 100)
  stats.UntestedPercent = round2(float64(stats.UntestedCount) / total * 100)
  stats.OverallProgress = round2(float64(stats.MasteredCount+stats.LearningCount) / total * 100)
  stats.AverageMastery = round2(masterySum / total)
  stats.AverageDifficulty = round2(difficultySum / total)
  return stats, nil
}

func (s *visualizationService) FilterNodes(ctx context.Context, userID uuid.UUID, materialID uuid.UUID, query NodeQuery) ([]*GraphNode, error) {
  if err := s.assertMaterialOwned(ctx, userID, materialID); err != nil {
    return nil, err
  }
  nodes, err := s.nodeRepo.GetFiltered(ctx, nil, materialID, repos.NodeFilter{
    Difficulty: query.Difficulty,
    Level:      query.Level,
  })
  if err != nil {
    return nil, fmt.Errorf("load knowledge nodes: %w", err)
  }
  annotated, _, err := s.annotateNodes(ctx, userID, nodes)
  if err != nil {
    return nil, err
  }

  // Status and color are per-user attributes, so they filter in memory.
  filtered := annotated[:0]
  for _, gn := range annotated {
    if query.Status != "" && gn.Status != query.Status {
      continue
    }
    if query.Color != "" && gn.Color != query.Color {
      continue
    }
    filtered = append(filtered, gn)
  }
  return filtered, nil
}

// annotateNodes joins nodes with the user's mastery records, defaulting to
// untested/gray for nodes the user has never touched.
func (s *visualizationService) annotateNodes(ctx context.Context, userID uuid.UUID, nodes []*types.KnowledgeNode) ([]*GraphNode, map[uuid.UUID]*GraphNode, error) {
  nodeIDs := make([]uuid.UUID, 0, len(nodes))
  for _, n := range nodes {
    if n != nil {
      nodeIDs = append(nodeIDs, n.ID)
    }
  }
  masteries, err := s.masteryRepo.GetByUserAndNodeIDs(ctx, nil, userID, nodeIDs)
  if err != nil {
    return nil, nil, fmt.Errorf("load masteries: %w", err)
  }
  masteryByNode := make(map[uuid.UUID]*types.UserMastery, len(masteries))
  for _, m := range masteries {
    if m != nil {
      masteryByNode[m.KnowledgeNodeID] = m
    }
  }

  result := make([]*GraphNode, 0, len(nodes))
  byID := make(map[uuid.UUID]*GraphNode, len(nodes))
  for _, n := range nodes {
    if n == nil {
      continue
    }
    gn := &GraphNode{
      ID:         n.ID,
      Name:       n.Name,
      Level:      n.Level,
      Difficulty: n.Difficulty,
      Importance: n.Importance,
      Status:     types.MasteryStatusUntested,
      Color:      types.MasteryColorGray,
    }
    if m := masteryByNode[n.ID]; m != nil {
      gn.MasteryLevel = m.MasteryLevel
      gn.Status = m.Status
      gn.Color = m.Color
    }
    result = append(result, gn)
    byID[n.ID] = gn
  }
  return result, byID, nil
}

func (s *visualizationService) assertMaterialOwned(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) error {
  materials, err := s.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    return fmt.Errorf("load study material: %w", err)
  }
  if len(materials) == 0 || materials[0] == nil || materials[0].UserID != userID {
    return apperr.ErrUnauthorized
  }
  return nil
}
