package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/prepgraph-backend/internal/logger"
	"github.com/yungbote/prepgraph-backend/internal/repos"
	"github.com/yungbote/prepgraph-backend/internal/types"
)

func testLogger(t interface{ Fatalf(string, ...any) }) *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

// fakeAI returns canned completions/embeddings, or errors when set.
type fakeAI struct {
	generateResponse json.RawMessage
	generateErr      error
	generateCalls    int

	embedDim   int
	embedErr   error
	embedCalls int
}

func (f *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	dim := f.embedDim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generateResponse, nil
}

type fakeOCR struct {
	result *OCRResult
	err    error
	calls  int
}

func (f *fakeOCR) ExtractText(ctx context.Context, filename string, document io.Reader) (*OCRResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeBucket struct {
	uploads   map[string][]byte
	downloads map[string]string
	deleted   []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{uploads: map[string][]byte{}, downloads: map[string]string{}}
}

func (f *fakeBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.downloads[key]
	if !ok {
		return nil, fmt.Errorf("no object at %s", key)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBucket) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type fakeNotifier struct {
	progressCalls []string
	failedCalls   []string
	doneCalls     int
}

func (f *fakeNotifier) JobProgress(userID uuid.UUID, run *types.ProcessingRun, stage string, progress int, message string) {
	f.progressCalls = append(f.progressCalls, stage)
}

func (f *fakeNotifier) JobFailed(userID uuid.UUID, run *types.ProcessingRun, stage string, errorMessage string) {
	f.failedCalls = append(f.failedCalls, stage)
}

func (f *fakeNotifier) JobDone(userID uuid.UUID, run *types.ProcessingRun) {
	f.doneCalls++
}

// fakeMaterialRepo keeps materials in memory and applies UpdateFields maps
// to the fields the services actually touch.
type fakeMaterialRepo struct {
	materials     map[uuid.UUID]*types.StudyMaterial
	statusHistory []string
	updateErr     error
}

func newFakeMaterialRepo(materials ...*types.StudyMaterial) *fakeMaterialRepo {
	m := &fakeMaterialRepo{materials: map[uuid.UUID]*types.StudyMaterial{}}
	for _, mat := range materials {
		m.materials[mat.ID] = mat
	}
	return m
}

func (f *fakeMaterialRepo) Create(ctx context.Context, tx *gorm.DB, materials []*types.StudyMaterial) ([]*types.StudyMaterial, error) {
	for _, m := range materials {
		f.materials[m.ID] = m
	}
	return materials, nil
}

func (f *fakeMaterialRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.StudyMaterial, error) {
	var out []*types.StudyMaterial
	for _, id := range ids {
		if m, ok := f.materials[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMaterialRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.StudyMaterial, error) {
	var out []*types.StudyMaterial
	for _, m := range f.materials {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMaterialRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	m, ok := f.materials[id]
	if !ok {
		return fmt.Errorf("material %s not found", id)
	}
	for k, v := range updates {
		switch k {
		case "processing_status":
			m.ProcessingStatus = v.(string)
			f.statusHistory = append(f.statusHistory, m.ProcessingStatus)
		case "error_message":
			m.ErrorMessage = v.(string)
		case "extracted_text":
			m.ExtractedText = v.(string)
		case "page_count":
			m.PageCount = v.(int)
		case "questions_count":
			switch n := v.(type) {
			case int:
				m.QuestionsCount = n
			case int64:
				m.QuestionsCount = int(n)
			}
		case "graph_error":
			m.GraphError = v.(string)
		case "processed_at":
			at := v.(time.Time)
			m.ProcessedAt = &at
		}
	}
	return nil
}

func (f *fakeMaterialRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(f.materials, id)
	}
	return nil
}

type fakeQuestionRepo struct {
	questions []*types.Question
	createErr error
}

func (f *fakeQuestionRepo) Create(ctx context.Context, tx *gorm.DB, questions []*types.Question) ([]*types.Question, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.questions = append(f.questions, questions...)
	return questions, nil
}

func (f *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Question, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.Question
	for _, q := range f.questions {
		if want[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionRepo) GetByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) ([]*types.Question, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range materialIDs {
		want[id] = true
	}
	var out []*types.Question
	for _, q := range f.questions {
		if want[q.StudyMaterialID] {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionRepo) CountByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (int64, error) {
	var count int64
	for _, q := range f.questions {
		if q.StudyMaterialID == materialID {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuestionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	for _, q := range f.questions {
		if q.ID != id {
			continue
		}
		if v, ok := updates["embedding"]; ok {
			if raw, ok := v.(datatypes.JSON); ok {
				q.Embedding = raw
			}
		}
		return nil
	}
	return fmt.Errorf("question %s not found", id)
}

func (f *fakeQuestionRepo) SoftDeleteByStudyMaterialIDs(ctx context.Context, tx *gorm.DB, materialIDs []uuid.UUID) error {
	return nil
}

type fakeOptionRepo struct {
	options   []*types.QuestionOption
	createErr error
}

func (f *fakeOptionRepo) Create(ctx context.Context, tx *gorm.DB, options []*types.QuestionOption) ([]*types.QuestionOption, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.options = append(f.options, options...)
	return options, nil
}

func (f *fakeOptionRepo) GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionOption, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range questionIDs {
		want[id] = true
	}
	var out []*types.QuestionOption
	for _, o := range f.options {
		if want[o.QuestionID] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOptionRepo) SoftDeleteByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) error {
	return nil
}

type fakeNodeRepo struct {
	nodes map[uuid.UUID]*types.KnowledgeNode
}

func newFakeNodeRepo(nodes ...*types.KnowledgeNode) *fakeNodeRepo {
	f := &fakeNodeRepo{nodes: map[uuid.UUID]*types.KnowledgeNode{}}
	for _, n := range nodes {
		f.nodes[n.ID] = n
	}
	return f
}

func (f *fakeNodeRepo) UpsertByName(ctx context.Context, tx *gorm.DB, nodes []*types.KnowledgeNode) ([]*types.KnowledgeNode, error) {
	out := make([]*types.KnowledgeNode, 0, len(nodes))
	for _, n := range nodes {
		var existing *types.KnowledgeNode
		for _, have := range f.nodes {
			if have.StudyMaterialID == n.StudyMaterialID && have.Name == n.Name {
				existing = have
				break
			}
		}
		if existing != nil {
			existing.Level = n.Level
			existing.Difficulty = n.Difficulty
			existing.Importance = n.Importance
			out = append(out, existing)
			continue
		}
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		f.nodes[n.ID] = n
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNodeRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNodeRepo) GetByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	for _, n := range f.nodes {
		if n.StudyMaterialID == materialID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNodeRepo) GetFiltered(ctx context.Context, tx *gorm.DB, materialID uuid.UUID, filter repos.NodeFilter) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	for _, n := range f.nodes {
		if n.StudyMaterialID != materialID {
			continue
		}
		if filter.Difficulty != nil && n.Difficulty != *filter.Difficulty {
			continue
		}
		if filter.Level != "" && n.Level != filter.Level {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

type fakeEdgeRepo struct {
	edges []*types.KnowledgeEdge
}

func (f *fakeEdgeRepo) Upsert(ctx context.Context, tx *gorm.DB, edges []*types.KnowledgeEdge) ([]*types.KnowledgeEdge, error) {
	for _, e := range edges {
		replaced := false
		for i, have := range f.edges {
			if have.NodeID == e.NodeID && have.RelatedNodeID == e.RelatedNodeID && have.RelationshipType == e.RelationshipType {
				f.edges[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			if e.ID == uuid.Nil {
				e.ID = uuid.New()
			}
			f.edges = append(f.edges, e)
		}
	}
	return edges, nil
}

func (f *fakeEdgeRepo) GetByNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.KnowledgeEdge, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range nodeIDs {
		want[id] = true
	}
	var out []*types.KnowledgeEdge
	for _, e := range f.edges {
		if want[e.NodeID] || want[e.RelatedNodeID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeConceptRepo struct {
	links []*types.QuestionConcept
}

func (f *fakeConceptRepo) Upsert(ctx context.Context, tx *gorm.DB, links []*types.QuestionConcept) ([]*types.QuestionConcept, error) {
	for _, l := range links {
		replaced := false
		for i, have := range f.links {
			if have.QuestionID == l.QuestionID && have.KnowledgeNodeID == l.KnowledgeNodeID {
				f.links[i] = l
				replaced = true
				break
			}
		}
		if !replaced {
			if l.ID == uuid.Nil {
				l.ID = uuid.New()
			}
			f.links = append(f.links, l)
		}
	}
	return links, nil
}

func (f *fakeConceptRepo) GetByQuestionIDs(ctx context.Context, tx *gorm.DB, questionIDs []uuid.UUID) ([]*types.QuestionConcept, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range questionIDs {
		want[id] = true
	}
	var out []*types.QuestionConcept
	for _, l := range f.links {
		if want[l.QuestionID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeConceptRepo) GetByKnowledgeNodeIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uuid.UUID) ([]*types.QuestionConcept, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range nodeIDs {
		want[id] = true
	}
	var out []*types.QuestionConcept
	for _, l := range f.links {
		if want[l.KnowledgeNodeID] {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeMasteryRepo struct {
	records map[uuid.UUID]*types.UserMastery
}

func newFakeMasteryRepo(records ...*types.UserMastery) *fakeMasteryRepo {
	f := &fakeMasteryRepo{records: map[uuid.UUID]*types.UserMastery{}}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeMasteryRepo) Create(ctx context.Context, tx *gorm.DB, masteries []*types.UserMastery) ([]*types.UserMastery, error) {
	for _, m := range masteries {
		f.records[m.ID] = m
	}
	return masteries, nil
}

func (f *fakeMasteryRepo) GetByUserAndNode(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeID uuid.UUID) (*types.UserMastery, error) {
	for _, m := range f.records {
		if m.UserID == userID && m.KnowledgeNodeID == nodeID {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMasteryRepo) GetByUserAndNodeIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, nodeIDs []uuid.UUID) ([]*types.UserMastery, error) {
	want := map[uuid.UUID]bool{}
	for _, id := range nodeIDs {
		want[id] = true
	}
	var out []*types.UserMastery
	for _, m := range f.records {
		if m.UserID == userID && want[m.KnowledgeNodeID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMasteryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, masteryID uuid.UUID, updates map[string]interface{}) error {
	m, ok := f.records[masteryID]
	if !ok {
		return fmt.Errorf("mastery %s not found", masteryID)
	}
	for k, v := range updates {
		switch k {
		case "attempts":
			m.Attempts = v.(int)
		case "correct_attempts":
			m.CorrectAttempts = v.(int)
		case "total_time_minutes":
			m.TotalTimeMinutes = v.(int)
		case "mastery_level":
			m.MasteryLevel = v.(float64)
		case "status":
			m.Status = v.(string)
		case "color":
			m.Color = v.(string)
		case "last_tested_at":
			at := v.(time.Time)
			m.LastTestedAt = &at
		}
	}
	return nil
}

type fakeRunRepo struct {
	runs map[uuid.UUID]*types.ProcessingRun
}

func newFakeRunRepo(runs ...*types.ProcessingRun) *fakeRunRepo {
	f := &fakeRunRepo{runs: map[uuid.UUID]*types.ProcessingRun{}}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, runs []*types.ProcessingRun) ([]*types.ProcessingRun, error) {
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return runs, nil
}

func (f *fakeRunRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ProcessingRun, error) {
	var out []*types.ProcessingRun
	for _, id := range ids {
		if r, ok := f.runs[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRunRepo) GetLatestByStudyMaterialID(ctx context.Context, tx *gorm.DB, materialID uuid.UUID) (*types.ProcessingRun, error) {
	var latest *types.ProcessingRun
	for _, r := range f.runs {
		if r.StudyMaterialID != materialID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, nil
}

func (f *fakeRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.ProcessingRun, error) {
	now := time.Now()
	for _, r := range f.runs {
		if r.Attempts >= maxAttempts {
			continue
		}
		runnable := r.Status == types.RunStatusQueued
		if r.Status == types.RunStatusFailed {
			runnable = r.LastErrorAt == nil || now.Sub(*r.LastErrorAt) >= retryDelay
		}
		if !runnable {
			continue
		}
		r.Status = types.RunStatusRunning
		r.Attempts++
		r.LockedAt = &now
		return r, nil
	}
	return nil, nil
}

func (f *fakeRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r, ok := f.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	for k, v := range updates {
		switch k {
		case "status":
			r.Status = v.(string)
		case "stage":
			r.Stage = v.(string)
		case "progress":
			r.Progress = v.(int)
		case "error":
			r.Error = v.(string)
		case "locked_at":
			if v == nil {
				r.LockedAt = nil
			}
		case "last_error_at":
			at := v.(time.Time)
			r.LastErrorAt = &at
		case "heartbeat_at":
			at := v.(time.Time)
			r.HeartbeatAt = &at
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (f *fakeRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	now := time.Now()
	if r, ok := f.runs[id]; ok {
		r.HeartbeatAt = &now
	}
	return nil
}
