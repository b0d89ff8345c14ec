package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/prepgraph-backend/internal/types"
)

type fakeGraphBuilder struct {
	failuresBeforeSuccess int
	calls                 int
}

func (f *fakeGraphBuilder) BuildGraph(ctx context.Context, materialID uuid.UUID) error {
	f.calls++
	if f.calls <= f.failuresBeforeSuccess {
		return errors.New("graph build flaked")
	}
	return nil
}

type fakeExtractor struct {
	questions []*types.Question
	err       error
	calls     int
	repo      *fakeQuestionRepo
}

func (f *fakeExtractor) ExtractQuestions(ctx context.Context, materialID uuid.UUID, text string) ([]*types.Question, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.repo != nil {
		f.repo.questions = append(f.repo.questions, f.questions...)
	}
	return f.questions, nil
}

type pipelineFixture struct {
	svc          *processingService
	userID       uuid.UUID
	material     *types.StudyMaterial
	materialRepo *fakeMaterialRepo
	questionRepo *fakeQuestionRepo
	runRepo      *fakeRunRepo
	bucket       *fakeBucket
	ocr          *fakeOCR
	extractor    *fakeExtractor
	graph        *fakeGraphBuilder
	ai           *fakeAI
	notifier     *fakeNotifier
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	userID := uuid.New()
	material := &types.StudyMaterial{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            "Biology 101",
		OriginalName:     "bio.pdf",
		StorageKey:       "materials/test/bio.pdf",
		ProcessingStatus: types.MaterialStatusPending,
	}

	questionRepo := &fakeQuestionRepo{}
	f := &pipelineFixture{
		userID:       userID,
		material:     material,
		materialRepo: newFakeMaterialRepo(material),
		questionRepo: questionRepo,
		runRepo:      newFakeRunRepo(),
		bucket:       newFakeBucket(),
		ocr:          &fakeOCR{result: &OCRResult{Text: "chapter text", Pages: []string{"chapter text"}, PageCount: 1}},
		graph:        &fakeGraphBuilder{},
		ai:           &fakeAI{},
		notifier:     &fakeNotifier{},
	}
	f.bucket.downloads[material.StorageKey] = "%PDF-1.4 fake"
	f.extractor = &fakeExtractor{
		repo: questionRepo,
		questions: []*types.Question{
			{ID: uuid.New(), StudyMaterialID: material.ID, Content: "q1"},
			{ID: uuid.New(), StudyMaterialID: material.ID, Content: "q2"},
		},
	}

	retry := RetryPolicy{MaxAttempts: 5, Backoff: func(int) time.Duration { return 0 }}
	f.svc = NewProcessingService(
		nil,
		testLogger(t),
		f.materialRepo,
		f.questionRepo,
		f.runRepo,
		f.bucket,
		f.ocr,
		f.extractor,
		f.graph,
		f.ai,
		f.notifier,
		DefaultWorkerPolicy(),
		retry,
	).(*processingService)
	return f
}

func (f *pipelineFixture) enqueueAndClaim(t *testing.T) *types.ProcessingRun {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.EnqueueProcessing(ctx, f.userID, f.material.ID); err != nil {
		t.Fatalf("EnqueueProcessing failed: %v", err)
	}
	run, err := f.runRepo.ClaimNextRunnable(ctx, nil, 5, time.Second, time.Minute)
	if err != nil || run == nil {
		t.Fatalf("expected a claimable run, got run=%v err=%v", run, err)
	}
	return run
}

func TestProcessRunHappyPath(t *testing.T) {
	f := newPipelineFixture(t)
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)

	if f.material.ProcessingStatus != types.MaterialStatusCompleted {
		t.Fatalf("expected completed got %s (error %q)", f.material.ProcessingStatus, f.material.ErrorMessage)
	}
	if f.material.ExtractedText != "chapter text" || f.material.PageCount != 1 {
		t.Fatalf("expected persisted OCR output, got text=%q pages=%d", f.material.ExtractedText, f.material.PageCount)
	}
	if f.material.QuestionsCount != 2 {
		t.Fatalf("expected 2 questions counted got %d", f.material.QuestionsCount)
	}
	if f.material.ProcessedAt == nil {
		t.Fatalf("expected processed_at set")
	}

	stored := f.runRepo.runs[run.ID]
	if stored.Status != types.RunStatusSucceeded || stored.Stage != types.RunStageDone || stored.Progress != 100 {
		t.Fatalf("unexpected final run state: %+v", stored)
	}
	if f.notifier.doneCalls != 1 {
		t.Fatalf("expected 1 done notification got %d", f.notifier.doneCalls)
	}

	// Every extracted question got an embedding.
	for _, q := range f.questionRepo.questions {
		if len(q.Embedding) == 0 {
			t.Fatalf("question %s missing embedding", q.ID)
		}
		var vec []float32
		if err := json.Unmarshal(q.Embedding, &vec); err != nil {
			t.Fatalf("embedding not valid JSON: %v", err)
		}
	}
}

func TestProcessRunOCRFailureMarksFailed(t *testing.T) {
	f := newPipelineFixture(t)
	f.ocr.err = errors.New("ocr returned no text for bio.pdf")
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)

	if f.material.ProcessingStatus != types.MaterialStatusFailed {
		t.Fatalf("expected failed got %s", f.material.ProcessingStatus)
	}
	if f.material.ErrorMessage == "" {
		t.Fatalf("expected non-empty error_message on failure")
	}
	stored := f.runRepo.runs[run.ID]
	if stored.Status != types.RunStatusFailed || stored.Stage != types.RunStageOCR {
		t.Fatalf("expected failed ocr run, got %s/%s", stored.Status, stored.Stage)
	}
	if stored.Error == "" || stored.LastErrorAt == nil {
		t.Fatalf("expected run error recorded, got %+v", stored)
	}
	if len(f.notifier.failedCalls) != 1 {
		t.Fatalf("expected 1 failure notification got %d", len(f.notifier.failedCalls))
	}
	if f.extractor.calls != 0 {
		t.Fatalf("extraction must not run after OCR failure, got %d calls", f.extractor.calls)
	}
}

func TestProcessRunSkipsCompletedStages(t *testing.T) {
	f := newPipelineFixture(t)
	f.material.ExtractedText = "already extracted"
	f.material.PageCount = 3
	f.questionRepo.questions = []*types.Question{
		{ID: uuid.New(), StudyMaterialID: f.material.ID, Content: "existing"},
	}
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)

	if f.ocr.calls != 0 {
		t.Fatalf("OCR should be skipped when text already persisted, got %d calls", f.ocr.calls)
	}
	if f.extractor.calls != 0 {
		t.Fatalf("extraction should be skipped when questions exist, got %d calls", f.extractor.calls)
	}
	if f.material.ProcessingStatus != types.MaterialStatusCompleted {
		t.Fatalf("expected completed got %s", f.material.ProcessingStatus)
	}
	if f.material.QuestionsCount != 1 {
		t.Fatalf("expected questions_count 1 got %d", f.material.QuestionsCount)
	}
}

func TestProcessRunGraphRetriesThenSucceeds(t *testing.T) {
	f := newPipelineFixture(t)
	f.graph.failuresBeforeSuccess = 2
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)

	if f.graph.calls != 3 {
		t.Fatalf("expected 3 graph attempts got %d", f.graph.calls)
	}
	if f.material.ProcessingStatus != types.MaterialStatusCompleted {
		t.Fatalf("expected completed got %s", f.material.ProcessingStatus)
	}
}

func TestProcessRunGraphRetriesExhausted(t *testing.T) {
	f := newPipelineFixture(t)
	f.graph.failuresBeforeSuccess = 100
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)

	if f.graph.calls != 5 {
		t.Fatalf("expected exactly 5 graph attempts got %d", f.graph.calls)
	}
	if f.material.ProcessingStatus != types.MaterialStatusFailed {
		t.Fatalf("expected failed got %s", f.material.ProcessingStatus)
	}
	if f.material.GraphError == "" {
		t.Fatalf("expected graph_error recorded")
	}
	stored := f.runRepo.runs[run.ID]
	if stored.Stage != types.RunStageGraph || stored.Status != types.RunStatusFailed {
		t.Fatalf("expected failed graph run, got %s/%s", stored.Status, stored.Stage)
	}
}

func TestReclaimedFailedRunGoesBackThroughPending(t *testing.T) {
	f := newPipelineFixture(t)
	f.ocr.err = errors.New("ocr returned no text for bio.pdf")
	run := f.enqueueAndClaim(t)

	f.svc.processRun(context.Background(), run)
	if f.material.ProcessingStatus != types.MaterialStatusFailed {
		t.Fatalf("expected failed got %s", f.material.ProcessingStatus)
	}

	f.ocr.err = nil
	reclaimed, err := f.runRepo.ClaimNextRunnable(context.Background(), nil, 5, 0, time.Minute)
	if err != nil || reclaimed == nil {
		t.Fatalf("expected failed run to be reclaimable, got run=%v err=%v", reclaimed, err)
	}
	f.svc.processRun(context.Background(), reclaimed)

	if f.material.ProcessingStatus != types.MaterialStatusCompleted {
		t.Fatalf("expected completed after retry got %s", f.material.ProcessingStatus)
	}
	// failed must never flip straight to processing.
	history := f.materialRepo.statusHistory
	for i := 1; i < len(history); i++ {
		if history[i-1] == types.MaterialStatusFailed && history[i] == types.MaterialStatusProcessing {
			t.Fatalf("material went failed->processing directly: %v", history)
		}
	}
}

func TestEnqueueRejectsForeignMaterial(t *testing.T) {
	f := newPipelineFixture(t)
	if _, err := f.svc.EnqueueProcessing(context.Background(), uuid.New(), f.material.ID); err == nil {
		t.Fatalf("expected error for foreign material")
	}
}
