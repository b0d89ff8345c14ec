package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

const graphSystemPrompt = `You build a knowledge graph of concepts from exam questions.
Respond with a JSON object of the shape:
{"nodes":[{"name":string,"level":string,"difficulty":int,"importance":int}],
 "edges":[{"from":string,"to":string,"relationship_type":string,"weight":number,"reasoning":string}],
 "question_concepts":[{"question_index":int,"node":string,"importance_level":int,"relevance_score":number,"is_primary":bool}]}
Rules:
- level is one of: subject, chapter, concept, detail
- relationship_type is one of: prerequisite, related_to, part_of, example_of, leads_to
- weight is in [0,1]
- difficulty and importance are integers from 1 to 5
- edge "from"/"to" and question_concepts "node" reference node names exactly`

type graphNodePayload struct {
  Name       string `json:"name"`
  Level      string `json:"level"`
  Difficulty int    `json:"difficulty"`
  Importance int    `json:"importance"`
}

type graphEdgePayload struct {
  From             string  `json:"from"`
  To               string  `json:"to"`
  RelationshipType string  `json:"relationship_type"`
  Weight           float64 `json:"weight"`
  Reasoning        string  `json:"reasoning"`
}

type graphLinkPayload struct {
  QuestionIndex   int     `json:"question_index"`
  Node            string  `json:"node"`
  ImportanceLevel int     `json:"importance_level"`
  RelevanceScore  float64 `json:"relevance_score"`
  IsPrimary       bool    `json:"is_primary"`
}

type graphPayload struct {
  Nodes            []graphNodePayload `json:"nodes"`
  Edges            []graphEdgePayload `json:"edges"`
  QuestionConcepts []graphLinkPayload `json:"question_concepts"`
}

type KnowledgeGraphService interface {
  // BuildGraph incorporates a material's questions into its concept graph.
  // Writes are upserts keyed on natural keys, so a retried build cannot
  // duplicate nodes, edges, or links.
  BuildGraph(ctx context.Context, materialID uuid.UUID) error
}

type knowledgeGraphService struct {
  db  *gorm.DB
  log *logger.Logger

  materialRepo repos.StudyMaterialRepo
  questionRepo repos.QuestionRepo
  nodeRepo     repos.KnowledgeNodeRepo
  edgeRepo     repos.KnowledgeEdgeRepo
  linkRepo     repos.QuestionConceptRepo

  ai OpenAIClient
}

func NewKnowledgeGraphService(
  db *gorm.DB,
  baseLog *logger.Logger,
  materialRepo repos.StudyMaterialRepo,
  questionRepo repos.QuestionRepo,
  nodeRepo repos.KnowledgeNodeRepo,
  edgeRepo repos.KnowledgeEdgeRepo,
  linkRepo repos.QuestionConceptRepo,
  ai OpenAIClient,
) KnowledgeGraphService {
  return &knowledgeGraphService{
    db:           db,
    log:          baseLog.With("service", "KnowledgeGraphService"),
    materialRepo: materialRepo,
    questionRepo: questionRepo,
    nodeRepo:     nodeRepo,
    edgeRepo:     edgeRepo,
    linkRepo:     linkRepo,
    ai:           ai,
  }
}

func (s *knowledgeGraphService) BuildGraph(ctx context.Context, materialID uuid.UUID) error {
  questions, err := s.questionRepo.GetByStudyMaterialIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    return fmt.Errorf("load questions: %w", err)
  }
  if len(questions) == 0 {
    return fmt.Errorf("no questions to build graph from")
  }

  var prompt strings.Builder
  prompt.WriteString("Questions:\n")
  for i, q := range questions {
    if q == nil {
      continue
    }
    prompt.WriteString(fmt.Sprintf("[%d] (topic: %s, difficulty: %d) %s\n", i, q.Topic, q.Difficulty, q.Content))
  }
  prompt.WriteString("\nBuild the concept graph.")

  raw, err := s.ai.GenerateJSON(ctx, graphSystemPrompt, prompt.String())
  if err != nil {
    return fmt.Errorf("graph completion failed: %w", err)
  }

  var payload graphPayload
  if err := json.Unmarshal(raw, &payload); err != nil {
    return fmt.Errorf("graph response shape invalid: %w", err)
  }
  if len(payload.Nodes) == 0 {
    return fmt.Errorf("graph response contained no nodes")
  }

  now := time.Now()
  nodes := make([]*types.KnowledgeNode, 0, len(payload.Nodes))
  for _, n := range payload.Nodes {
    name := strings.TrimSpace(n.Name)
    if name == "" {
      continue
    }
    nodes = append(nodes, &types.KnowledgeNode{
      ID:              uuid.New(),
      StudyMaterialID: materialID,
      Name:            name,
      Level:           normalizeNodeLevel(n.Level),
      Difficulty:      clampScale(n.Difficulty),
      Importance:      clampScale(n.Importance),
      Active:          true,
      CreatedAt:       now,
      UpdatedAt:       now,
    })
  }

  persisted, err := s.nodeRepo.UpsertByName(ctx, nil, nodes)
  if err != nil {
    return fmt.Errorf("upsert nodes: %w", err)
  }
  byName := make(map[string]*types.KnowledgeNode, len(persisted))
  for _, n := range persisted {
    if n != nil {
      byName[n.Name] = n
    }
  }

  edges := make([]*types.KnowledgeEdge, 0, len(payload.Edges))
  for _, e := range payload.Edges {
    from, okFrom := byName[strings.TrimSpace(e.From)]
    to, okTo := byName[strings.TrimSpace(e.To)]
    if !okFrom || !okTo || from.ID == to.ID {
      continue
    }
    if !validEdgeType(e.RelationshipType) {
      continue
    }
    edges = append(edges, &types.KnowledgeEdge{
      ID:               uuid.New(),
      NodeID:           from.ID,
      RelatedNodeID:    to.ID,
      RelationshipType: e.RelationshipType,
      Weight:           clampWeight(e.Weight),
      Reasoning:        e.Reasoning,
      Active:           true,
      CreatedAt:        now,
      UpdatedAt:        now,
    })
  }
  if _, err := s.edgeRepo.Upsert(ctx, nil, edges); err != nil {
    return fmt.Errorf("upsert edges: %w", err)
  }

  links := make([]*types.QuestionConcept, 0, len(payload.QuestionConcepts))
  for _, l := range payload.QuestionConcepts {
    if l.QuestionIndex < 0 || l.QuestionIndex >= len(questions) {
      continue
    }
    q := questions[l.QuestionIndex]
    node, ok := byName[strings.TrimSpace(l.Node)]
    if q == nil || !ok {
      continue
    }
    links = append(links, &types.QuestionConcept{
      ID:               uuid.New(),
      QuestionID:       q.ID,
      KnowledgeNodeID:  node.ID,
      ImportanceLevel:  clampScale(l.ImportanceLevel),
      RelevanceScore:   clampWeight(l.RelevanceScore),
      IsPrimaryConcept: l.IsPrimary,
      ExtractionMethod: "llm",
      CreatedAt:        now,
      UpdatedAt:        now,
    })
  }
  if _, err := s.linkRepo.Upsert(ctx, nil, links); err != nil {
    return fmt.Errorf("upsert question concepts: %w", err)
  }

  meta := map[string]any{
    "concepts_extracted": true,
    "edges_built":        len(edges) > 0,
    "node_count":         len(persisted),
    "edge_count":         len(edges),
  }
  metaJSON, _ := json.Marshal(meta)
  if err := s.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
    "graph_metadata": datatypes.JSON(metaJSON),
    "graph_error":    "",
  }); err != nil {
    return fmt.Errorf("update graph metadata: %w", err)
  }

  s.log.Info("Knowledge graph updated", "material_id", materialID, "nodes", len(persisted), "edges", len(edges), "links", len(links))
  return nil
}

func normalizeNodeLevel(level string) string {
  switch level {
  case types.NodeLevelSubject, types.NodeLevelChapter, types.NodeLevelConcept, types.NodeLevelDetail:
    return level
  default:
    return types.NodeLevelConcept
  }
}

func validEdgeType(t string) bool {
  switch t {
  case types.EdgePrerequisite, types.EdgeRelatedTo, types.EdgePartOf, types.EdgeExampleOf, types.EdgeLeadsTo:
    return true
  default:
    return false
  }
}

func clampScale(v int) int {
  if v < 1 {
    return 1
  }
  if v > 5 {
    return 5
  }
  return v
}

func clampWeight(v float64) float64 {
  if v < 0 {
    return 0
  }
  if v > 1 {
    return 1
  }
  return v
}
