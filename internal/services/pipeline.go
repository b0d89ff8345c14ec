package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

// RetryPolicy is the explicit retry configuration for a pipeline stage:
// at most MaxAttempts tries, sleeping Backoff(attempt) between them.
type RetryPolicy struct {
  MaxAttempts int
  Backoff     func(attempt int) time.Duration
}

func DefaultGraphRetryPolicy() RetryPolicy {
  return RetryPolicy{
    MaxAttempts: 5,
    Backoff: func(attempt int) time.Duration {
      return time.Duration(attempt) * 2 * time.Second
    },
  }
}

// WorkerPolicy drives the claim loop: how often to poll, how many times a
// whole run may be re-claimed after failure, and when a running claim is
// considered abandoned.
type WorkerPolicy struct {
  PollInterval time.Duration
  MaxAttempts  int
  RetryDelay   time.Duration
  StaleRunning time.Duration
}

func DefaultWorkerPolicy() WorkerPolicy {
  return WorkerPolicy{
    PollInterval: 1 * time.Second,
    MaxAttempts:  5,
    RetryDelay:   30 * time.Second,
    StaleRunning: 2 * time.Minute,
  }
}

type ProcessingService interface {
  EnqueueProcessing(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*types.ProcessingRun, error)
  StartWorker(ctx context.Context)
}

type processingService struct {
  db  *gorm.DB
  log *logger.Logger

  materialRepo repos.StudyMaterialRepo
  questionRepo repos.QuestionRepo
  runRepo      repos.ProcessingRunRepo

  bucket     BucketService
  ocr        OCRClient
  extraction QuestionExtractionService
  graph      KnowledgeGraphService
  ai         OpenAIClient
  notifier   JobNotifier

  workerPolicy WorkerPolicy
  graphRetry   RetryPolicy
}

func NewProcessingService(
  db *gorm.DB,
  baseLog *logger.Logger,
  materialRepo repos.StudyMaterialRepo,
  questionRepo repos.QuestionRepo,
  runRepo repos.ProcessingRunRepo,
  bucket BucketService,
  ocr OCRClient,
  extraction QuestionExtractionService,
  graph KnowledgeGraphService,
  ai OpenAIClient,
  notifier JobNotifier,
  workerPolicy WorkerPolicy,
  graphRetry RetryPolicy,
) ProcessingService {
  return &processingService{
    db:           db,
    log:          baseLog.With("service", "ProcessingService"),
    materialRepo: materialRepo,
    questionRepo: questionRepo,
    runRepo:      runRepo,
    bucket:       bucket,
    ocr:          ocr,
    extraction:   extraction,
    graph:        graph,
    ai:           ai,
    notifier:     notifier,
    workerPolicy: workerPolicy,
    graphRetry:   graphRetry,
  }
}

func (ps *processingService) EnqueueProcessing(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*types.ProcessingRun, error) {
  materials, err := ps.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    return nil, fmt.Errorf("load study material: %w", err)
  }
  if len(materials) == 0 || materials[0] == nil || materials[0].UserID != userID {
    return nil, fmt.Errorf("study material not found or not owned by user")
  }

  now := time.Now()
  run := &types.ProcessingRun{
    ID:              uuid.New(),
    UserID:          userID,
    StudyMaterialID: materialID,
    Status:          types.RunStatusQueued,
    Stage:           types.RunStageOCR,
    Progress:        0,
    Attempts:        0,
    Metadata:        datatypes.JSON([]byte(`{}`)),
    CreatedAt:       now,
    UpdatedAt:       now,
  }
  if _, err := ps.runRepo.Create(ctx, nil, []*types.ProcessingRun{run}); err != nil {
    return nil, fmt.Errorf("create processing run: %w", err)
  }

  if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
    "processing_status": types.MaterialStatusPending,
    "error_message":     "",
  }); err != nil {
    return nil, fmt.Errorf("reset material status: %w", err)
  }
  return run, nil
}

func (ps *processingService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(ps.workerPolicy.PollInterval)
    defer ticker.Stop()

    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        run, err := ps.runRepo.ClaimNextRunnable(ctx, nil, ps.workerPolicy.MaxAttempts, ps.workerPolicy.RetryDelay, ps.workerPolicy.StaleRunning)
        if err != nil {
          ps.log.Warn("ClaimNextRunnable failed", "error", err)
          continue
        }
        if run == nil {
          continue
        }
        ps.processRun(ctx, run)
      }
    }
  }()
}

func (ps *processingService) processRun(ctx context.Context, run *types.ProcessingRun) {
  userID := run.UserID
  runID := run.ID
  materialID := run.StudyMaterialID

  fail := func(stage string, err error) {
    now := time.Now()
    _ = ps.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
      "status":        types.RunStatusFailed,
      "stage":         stage,
      "error":         err.Error(),
      "last_error_at": now,
      "locked_at":     nil,
      "updated_at":    now,
    })
    _ = ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
      "processing_status": types.MaterialStatusFailed,
      "error_message":     err.Error(),
    })
    ps.log.Error("Processing run failed", "run_id", runID, "stage", stage, "error", err)
    ps.notifier.JobFailed(userID, run, stage, err.Error())
  }

  progress := func(stage string, pct int, msg string) {
    now := time.Now()
    _ = ps.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
      "stage":        stage,
      "progress":     pct,
      "heartbeat_at": now,
      "updated_at":   now,
    })
    ps.notifier.JobProgress(userID, run, stage, pct, msg)
  }

  materials, err := ps.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil || len(materials) == 0 || materials[0] == nil {
    fail(types.RunStageOCR, fmt.Errorf("load study material: %v", err))
    return
  }
  material := materials[0]

  // A re-claimed failed run goes back through pending before processing.
  if material.ProcessingStatus == types.MaterialStatusFailed {
    if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
      "processing_status": types.MaterialStatusPending,
      "error_message":     "",
    }); err != nil {
      fail(types.RunStageOCR, fmt.Errorf("reset material status: %w", err))
      return
    }
    material.ProcessingStatus = types.MaterialStatusPending
  }

  if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
    "processing_status": types.MaterialStatusProcessing,
  }); err != nil {
    fail(types.RunStageOCR, fmt.Errorf("mark material processing: %w", err))
    return
  }

  // 1) OCR (idempotent): skip when a previous attempt already persisted text.
  if strings.TrimSpace(material.ExtractedText) == "" {
    progress(types.RunStageOCR, 5, "Extracting text from document")

    rc, err := ps.bucket.DownloadFile(ctx, material.StorageKey)
    if err != nil {
      fail(types.RunStageOCR, fmt.Errorf("download document: %w", err))
      return
    }
    result, ocrErr := ps.ocr.ExtractText(ctx, material.OriginalName, rc)
    _ = rc.Close()
    if ocrErr != nil {
      fail(types.RunStageOCR, ocrErr)
      return
    }

    // Persist immediately so partial progress survives a later failure.
    if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
      "extracted_text": result.Text,
      "page_count":     result.PageCount,
    }); err != nil {
      fail(types.RunStageOCR, fmt.Errorf("persist extracted text: %w", err))
      return
    }
    material.ExtractedText = result.Text
    material.PageCount = result.PageCount
  }

  // 2) EXTRACT (idempotent): skip when questions already exist.
  progress(types.RunStageExtract, 30, "Extracting questions")
  existing, err := ps.questionRepo.CountByStudyMaterialID(ctx, nil, materialID)
  if err != nil {
    fail(types.RunStageExtract, fmt.Errorf("count questions: %w", err))
    return
  }
  if existing == 0 {
    questions, err := ps.extraction.ExtractQuestions(ctx, materialID, material.ExtractedText)
    if err != nil {
      fail(types.RunStageExtract, err)
      return
    }
    existing = int64(len(questions))
  }
  if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
    "questions_count": existing,
  }); err != nil {
    fail(types.RunStageExtract, fmt.Errorf("update questions count: %w", err))
    return
  }

  // 3) EMBED (idempotent): embed only questions missing embeddings.
  progress(types.RunStageEmbed, 55, "Embedding questions")
  questions, err := ps.questionRepo.GetByStudyMaterialIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    fail(types.RunStageEmbed, fmt.Errorf("load questions: %w", err))
    return
  }
  missing := make([]*types.Question, 0, len(questions))
  for _, q := range questions {
    if q == nil {
      continue
    }
    if len(q.Embedding) == 0 {
      missing = append(missing, q)
    }
  }

  const batchSize = 64
  const embedConcurrency = 4
  grp, grpCtx := errgroup.WithContext(ctx)
  grp.SetLimit(embedConcurrency)
  for start := 0; start < len(missing); start += batchSize {
    end := start + batchSize
    if end > len(missing) {
      end = len(missing)
    }
    batch := missing[start:end]
    grp.Go(func() error {
      inputs := make([]string, len(batch))
      for i, q := range batch {
        inputs[i] = q.Content
      }
      vecs, err := ps.ai.Embed(grpCtx, inputs)
      if err != nil {
        return fmt.Errorf("embed questions: %w", err)
      }
      for i, q := range batch {
        b, _ := json.Marshal(vecs[i])
        if err := ps.questionRepo.UpdateFields(grpCtx, nil, q.ID, map[string]interface{}{
          "embedding": datatypes.JSON(b),
        }); err != nil {
          return fmt.Errorf("update question embedding: %w", err)
        }
      }
      return nil
    })
  }
  if err := grp.Wait(); err != nil {
    fail(types.RunStageEmbed, err)
    return
  }

  // 4) GRAPH: bounded retries per the stage's policy.
  progress(types.RunStageGraph, 75, "Updating knowledge graph")
  var graphErr error
  for attempt := 1; attempt <= ps.graphRetry.MaxAttempts; attempt++ {
    graphErr = ps.graph.BuildGraph(ctx, materialID)
    if graphErr == nil {
      break
    }
    ps.log.Warn("Graph build attempt failed",
      "run_id", runID,
      "attempt", attempt,
      "max_attempts", ps.graphRetry.MaxAttempts,
      "error", graphErr,
    )
    if attempt < ps.graphRetry.MaxAttempts && ps.graphRetry.Backoff != nil {
      time.Sleep(ps.graphRetry.Backoff(attempt))
    }
  }
  if graphErr != nil {
    _ = ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
      "graph_error": graphErr.Error(),
    })
    fail(types.RunStageGraph, graphErr)
    return
  }

  // Finalize.
  now := time.Now()
  _ = ps.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
    "status":       types.RunStatusSucceeded,
    "stage":        types.RunStageDone,
    "progress":     100,
    "error":        "",
    "locked_at":    nil,
    "heartbeat_at": now,
    "updated_at":   now,
  })
  if err := ps.materialRepo.UpdateFields(ctx, nil, materialID, map[string]interface{}{
    "processing_status": types.MaterialStatusCompleted,
    "error_message":     "",
    "processed_at":      now,
  }); err != nil {
    fail(types.RunStageDone, fmt.Errorf("mark material completed: %w", err))
    return
  }

  ps.notifier.JobDone(userID, run)
}
