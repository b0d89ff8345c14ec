package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/prepgraph-backend/internal/apperr"
	"github.com/yungbote/prepgraph-backend/internal/types"
)

type vizFixture struct {
	svc         VisualizationService
	userID      uuid.UUID
	material    *types.StudyMaterial
	nodeRepo    *fakeNodeRepo
	edgeRepo    *fakeEdgeRepo
	conceptRepo *fakeConceptRepo
	masteryRepo *fakeMasteryRepo
	qRepo       *fakeQuestionRepo
}

func newVizFixture(t *testing.T) *vizFixture {
	t.Helper()
	f := &vizFixture{
		userID:      uuid.New(),
		nodeRepo:    newFakeNodeRepo(),
		edgeRepo:    &fakeEdgeRepo{},
		conceptRepo: &fakeConceptRepo{},
		masteryRepo: newFakeMasteryRepo(),
		qRepo:       &fakeQuestionRepo{},
	}
	f.material = &types.StudyMaterial{ID: uuid.New(), UserID: f.userID}
	f.svc = NewVisualizationService(testLogger(t), newFakeMaterialRepo(f.material), f.nodeRepo, f.edgeRepo, f.conceptRepo, f.qRepo, f.masteryRepo)
	return f
}

func (f *vizFixture) addNode(name string, difficulty, importance int) *types.KnowledgeNode {
	n := &types.KnowledgeNode{
		ID:              uuid.New(),
		StudyMaterialID: f.material.ID,
		Name:            name,
		Level:           types.NodeLevelConcept,
		Difficulty:      difficulty,
		Importance:      importance,
	}
	f.nodeRepo.nodes[n.ID] = n
	return n
}

func (f *vizFixture) addMastery(nodeID uuid.UUID, level float64) {
	status, color := deriveMastery(level)
	m := &types.UserMastery{
		ID:              uuid.New(),
		UserID:          f.userID,
		KnowledgeNodeID: nodeID,
		MasteryLevel:    level,
		Status:          status,
		Color:           color,
	}
	f.masteryRepo.records[m.ID] = m
}

func TestStatisticsPercentages(t *testing.T) {
	f := newVizFixture(t)

	// 10 nodes: 3 mastered, 1 learning, 2 weak, 4 untested.
	var nodes []*types.KnowledgeNode
	for i := 0; i < 10; i++ {
		nodes = append(nodes, f.addNode(fmt.Sprintf("node-%d", i), 3, 3))
	}
	for i := 0; i < 3; i++ {
		f.addMastery(nodes[i].ID, 0.9)
	}
	f.addMastery(nodes[3].ID, 0.6)
	f.addMastery(nodes[4].ID, 0.2)
	f.addMastery(nodes[5].ID, 0.3)

	stats, err := f.svc.Statistics(context.Background(), f.userID, f.material.ID)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalNodes != 10 {
		t.Fatalf("expected 10 nodes got %d", stats.TotalNodes)
	}
	if stats.MasteredPercent != 30.00 {
		t.Fatalf("expected mastered 30.00 got %v", stats.MasteredPercent)
	}
	if stats.LearningPercent != 10.00 {
		t.Fatalf("expected learning 10.00 got %v", stats.LearningPercent)
	}
	if stats.WeakPercent != 20.00 {
		t.Fatalf("expected weak 20.00 got %v", stats.WeakPercent)
	}
	if stats.UntestedPercent != 40.00 {
		t.Fatalf("expected untested 40.00 got %v", stats.UntestedPercent)
	}
	if stats.OverallProgress != 40.00 {
		t.Fatalf("expected overall progress 40.00 got %v", stats.OverallProgress)
	}
}

func TestStatisticsEmptyGraph(t *testing.T) {
	f := newVizFixture(t)
	stats, err := f.svc.Statistics(context.Background(), f.userID, f.material.ID)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalNodes != 0 || stats.MasteredPercent != 0 || stats.OverallProgress != 0 || stats.AverageMastery != 0 {
		t.Fatalf("expected zeroed stats for empty graph, got %+v", stats)
	}
}

func TestGraphDataAnnotatesMastery(t *testing.T) {
	f := newVizFixture(t)
	a := f.addNode("A", 2, 4)
	b := f.addNode("B", 3, 3)
	f.addMastery(a.ID, 0.9)
	f.edgeRepo.edges = append(f.edgeRepo.edges, &types.KnowledgeEdge{
		ID: uuid.New(), NodeID: a.ID, RelatedNodeID: b.ID, RelationshipType: types.EdgePrerequisite, Weight: 0.7,
	})

	data, err := f.svc.GraphData(context.Background(), f.userID, f.material.ID)
	if err != nil {
		t.Fatalf("GraphData failed: %v", err)
	}
	if len(data.Nodes) != 2 || len(data.Edges) != 1 {
		t.Fatalf("expected 2 nodes / 1 edge got %d/%d", len(data.Nodes), len(data.Edges))
	}
	byName := map[string]*GraphNode{}
	for _, n := range data.Nodes {
		byName[n.Name] = n
	}
	if byName["A"].Color != types.MasteryColorGreen {
		t.Fatalf("expected node A green got %s", byName["A"].Color)
	}
	if byName["B"].Status != types.MasteryStatusUntested || byName["B"].Color != types.MasteryColorGray {
		t.Fatalf("expected node B untested/gray got %s/%s", byName["B"].Status, byName["B"].Color)
	}
}

func TestNodeDetailLearningPath(t *testing.T) {
	f := newVizFixture(t)
	target := f.addNode("Target", 3, 3)

	// Seven weak prerequisites; path keeps the five most important, names
	// breaking ties.
	prereqs := []*types.KnowledgeNode{
		f.addNode("zeta", 3, 5),
		f.addNode("alpha", 3, 2),
		f.addNode("beta", 3, 2),
		f.addNode("gamma", 3, 4),
		f.addNode("delta", 3, 4),
		f.addNode("epsilon", 3, 1),
		f.addNode("eta", 3, 1),
	}
	for _, p := range prereqs {
		f.addMastery(p.ID, 0.2)
		f.edgeRepo.edges = append(f.edgeRepo.edges, &types.KnowledgeEdge{
			ID: uuid.New(), NodeID: p.ID, RelatedNodeID: target.ID, RelationshipType: types.EdgePrerequisite, Weight: 0.5,
		})
	}
	// A mastered prerequisite must not show up in the path.
	done := f.addNode("done", 3, 5)
	f.addMastery(done.ID, 1)
	f.edgeRepo.edges = append(f.edgeRepo.edges, &types.KnowledgeEdge{
		ID: uuid.New(), NodeID: done.ID, RelatedNodeID: target.ID, RelationshipType: types.EdgePrerequisite, Weight: 0.5,
	})

	detail, err := f.svc.NodeDetail(context.Background(), f.userID, f.material.ID, target.ID)
	if err != nil {
		t.Fatalf("NodeDetail failed: %v", err)
	}
	if len(detail.LearningPath) != 5 {
		t.Fatalf("expected learning path capped at 5 got %d", len(detail.LearningPath))
	}
	wantOrder := []string{"zeta", "delta", "gamma", "alpha", "beta"}
	for i, want := range wantOrder {
		if detail.LearningPath[i].Name != want {
			t.Fatalf("path[%d]: want %s got %s", i, want, detail.LearningPath[i].Name)
		}
	}
}

func TestNodeDetailQuestionsAndNeighbors(t *testing.T) {
	f := newVizFixture(t)
	target := f.addNode("Target", 3, 3)
	other := f.addNode("Other", 3, 3)
	before := f.addNode("Before", 3, 3)
	after := f.addNode("After", 3, 3)
	f.edgeRepo.edges = append(f.edgeRepo.edges,
		&types.KnowledgeEdge{
			ID: uuid.New(), NodeID: target.ID, RelatedNodeID: other.ID, RelationshipType: types.EdgeRelatedTo, Weight: 0.5,
		},
		&types.KnowledgeEdge{
			ID: uuid.New(), NodeID: before.ID, RelatedNodeID: target.ID, RelationshipType: types.EdgePrerequisite, Weight: 0.5,
		},
		&types.KnowledgeEdge{
			ID: uuid.New(), NodeID: target.ID, RelatedNodeID: after.ID, RelationshipType: types.EdgePrerequisite, Weight: 0.5,
		},
	)

	q := &types.Question{ID: uuid.New(), StudyMaterialID: f.material.ID, Content: "q1"}
	f.qRepo.questions = append(f.qRepo.questions, q)
	f.conceptRepo.links = append(f.conceptRepo.links, &types.QuestionConcept{
		ID: uuid.New(), QuestionID: q.ID, KnowledgeNodeID: target.ID,
	})

	detail, err := f.svc.NodeDetail(context.Background(), f.userID, f.material.ID, target.ID)
	if err != nil {
		t.Fatalf("NodeDetail failed: %v", err)
	}
	if len(detail.Questions) != 1 || detail.Questions[0].ID != q.ID {
		t.Fatalf("expected 1 linked question got %d", len(detail.Questions))
	}
	if len(detail.Related) != 3 {
		t.Fatalf("expected 3 neighbors got %d", len(detail.Related))
	}
	if len(detail.Prerequisites) != 1 || detail.Prerequisites[0] != "Before" {
		t.Fatalf("expected prerequisites [Before] got %v", detail.Prerequisites)
	}
	if len(detail.Dependents) != 1 || detail.Dependents[0] != "After" {
		t.Fatalf("expected dependents [After] got %v", detail.Dependents)
	}
}

func TestNodeDetailUnknownNodeNotFound(t *testing.T) {
	f := newVizFixture(t)
	_, err := f.svc.NodeDetail(context.Background(), f.userID, f.material.ID, uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestVisualizationForeignMaterialForbidden(t *testing.T) {
	f := newVizFixture(t)
	stranger := uuid.New()

	if _, err := f.svc.GraphData(context.Background(), stranger, f.material.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("GraphData: expected ErrUnauthorized got %v", err)
	}
	if _, err := f.svc.Statistics(context.Background(), stranger, f.material.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("Statistics: expected ErrUnauthorized got %v", err)
	}
	if _, err := f.svc.GraphData(context.Background(), f.userID, uuid.New()); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("unknown material: expected ErrUnauthorized got %v", err)
	}
}

func TestFilterNodes(t *testing.T) {
	f := newVizFixture(t)
	easy := f.addNode("easy", 1, 3)
	hard := f.addNode("hard", 5, 3)
	f.addMastery(easy.ID, 0.9)
	f.addMastery(hard.ID, 0.2)

	difficulty := 5
	nodes, err := f.svc.FilterNodes(context.Background(), f.userID, f.material.ID, NodeQuery{Difficulty: &difficulty})
	if err != nil {
		t.Fatalf("FilterNodes failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "hard" {
		t.Fatalf("expected only hard node got %+v", nodes)
	}

	nodes, err = f.svc.FilterNodes(context.Background(), f.userID, f.material.ID, NodeQuery{Color: types.MasteryColorGreen})
	if err != nil {
		t.Fatalf("FilterNodes failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "easy" {
		t.Fatalf("expected only easy node got %+v", nodes)
	}
}
