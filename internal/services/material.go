package services

import (
  "context"
  "fmt"
  "io"
  "path/filepath"
  "strings"
  "time"

  "github.com/google/uuid"

  "github.com/yungbote/prepgraph-backend/internal/apperr"
  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/sse"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

// MaterialWithRun pairs a study material with its most recent processing run
// so clients can render both document state and pipeline state in one shot.
type MaterialWithRun struct {
  Material  *types.StudyMaterial `json:"material"`
  LatestRun *types.ProcessingRun `json:"latest_run,omitempty"`
}

type UploadMaterialInput struct {
  Title        string
  OriginalName string
  MimeType     string
  SizeBytes    int64
  File         io.Reader
}

type StudyMaterialService interface {
  Upload(ctx context.Context, userID uuid.UUID, input UploadMaterialInput) (*MaterialWithRun, error)
  List(ctx context.Context, userID uuid.UUID) ([]*MaterialWithRun, error)
  Get(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MaterialWithRun, error)
  Retry(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MaterialWithRun, error)
  Delete(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) error
}

type studyMaterialService struct {
  log          *logger.Logger
  materialRepo repos.StudyMaterialRepo
  questionRepo repos.QuestionRepo
  runRepo      repos.ProcessingRunRepo
  bucket       BucketService
  processing   ProcessingService
  hub          *sse.SSEHub
}

func NewStudyMaterialService(
  baseLog *logger.Logger,
  materialRepo repos.StudyMaterialRepo,
  questionRepo repos.QuestionRepo,
  runRepo repos.ProcessingRunRepo,
  bucket BucketService,
  processing ProcessingService,
  hub *sse.SSEHub,
) StudyMaterialService {
  return &studyMaterialService{
    log:          baseLog.With("service", "StudyMaterialService"),
    materialRepo: materialRepo,
    questionRepo: questionRepo,
    runRepo:      runRepo,
    bucket:       bucket,
    processing:   processing,
    hub:          hub,
  }
}

func (s *studyMaterialService) Upload(ctx context.Context, userID uuid.UUID, input UploadMaterialInput) (*MaterialWithRun, error) {
  if strings.ToLower(input.MimeType) != "application/pdf" {
    return nil, fmt.Errorf("%w: only PDF uploads are supported", apperr.ErrInvalidArgument)
  }
  if input.File == nil {
    return nil, fmt.Errorf("%w: missing file", apperr.ErrInvalidArgument)
  }

  title := strings.TrimSpace(input.Title)
  if title == "" {
    base := filepath.Base(input.OriginalName)
    title = strings.TrimSuffix(base, filepath.Ext(base))
  }
  if title == "" {
    title = "Untitled Material"
  }

  materialID := uuid.New()
  storageKey := fmt.Sprintf("materials/%s/%s.pdf", userID, materialID)
  if err := s.bucket.UploadFile(ctx, storageKey, input.File); err != nil {
    return nil, fmt.Errorf("upload document: %w", err)
  }

  material := &types.StudyMaterial{
    ID:               materialID,
    UserID:           userID,
    Title:            title,
    OriginalName:     input.OriginalName,
    MimeType:         input.MimeType,
    SizeBytes:        input.SizeBytes,
    StorageKey:       storageKey,
    FileURL:          s.bucket.GetPublicURL(storageKey),
    ProcessingStatus: types.MaterialStatusPending,
  }
  if _, err := s.materialRepo.Create(ctx, nil, []*types.StudyMaterial{material}); err != nil {
    // Best effort cleanup; the DB row is the source of truth.
    if delErr := s.bucket.DeleteFile(context.Background(), storageKey); delErr != nil {
      s.log.Warn("Failed to remove orphaned upload", "storage_key", storageKey, "error", delErr)
    }
    return nil, fmt.Errorf("create study material: %w", err)
  }

  run, err := s.processing.EnqueueProcessing(ctx, userID, materialID)
  if err != nil {
    return nil, fmt.Errorf("enqueue processing: %w", err)
  }

  if s.hub != nil {
    s.hub.Broadcast(sse.SSEMessage{
      Channel: userID.String(),
      Event:   sse.SSEEventMaterialCreated,
      Data: map[string]any{
        "material_id": materialID.String(),
        "title":       title,
      },
    })
  }

  return &MaterialWithRun{Material: material, LatestRun: run}, nil
}

func (s *studyMaterialService) List(ctx context.Context, userID uuid.UUID) ([]*MaterialWithRun, error) {
  materials, err := s.materialRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("list study materials: %w", err)
  }
  results := make([]*MaterialWithRun, 0, len(materials))
  for _, m := range materials {
    if m == nil {
      continue
    }
    run, err := s.runRepo.GetLatestByStudyMaterialID(ctx, nil, m.ID)
    if err != nil {
      return nil, fmt.Errorf("load latest run: %w", err)
    }
    results = append(results, &MaterialWithRun{Material: m, LatestRun: run})
  }
  return results, nil
}

func (s *studyMaterialService) Get(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MaterialWithRun, error) {
  material, err := s.ownedMaterial(ctx, userID, materialID)
  if err != nil {
    return nil, err
  }
  run, err := s.runRepo.GetLatestByStudyMaterialID(ctx, nil, materialID)
  if err != nil {
    return nil, fmt.Errorf("load latest run: %w", err)
  }
  return &MaterialWithRun{Material: material, LatestRun: run}, nil
}

func (s *studyMaterialService) Retry(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*MaterialWithRun, error) {
  material, err := s.ownedMaterial(ctx, userID, materialID)
  if err != nil {
    return nil, err
  }
  if material.ProcessingStatus != types.MaterialStatusFailed {
    return nil, fmt.Errorf("%w: material is not in a failed state", apperr.ErrInvalidArgument)
  }
  run, err := s.processing.EnqueueProcessing(ctx, userID, materialID)
  if err != nil {
    return nil, fmt.Errorf("enqueue processing: %w", err)
  }
  material.ProcessingStatus = types.MaterialStatusPending
  material.ErrorMessage = ""
  material.UpdatedAt = time.Now()
  return &MaterialWithRun{Material: material, LatestRun: run}, nil
}

func (s *studyMaterialService) Delete(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) error {
  material, err := s.ownedMaterial(ctx, userID, materialID)
  if err != nil {
    return err
  }
  if err := s.questionRepo.SoftDeleteByStudyMaterialIDs(ctx, nil, []uuid.UUID{materialID}); err != nil {
    return fmt.Errorf("delete questions: %w", err)
  }
  if err := s.materialRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{materialID}); err != nil {
    return fmt.Errorf("delete study material: %w", err)
  }
  if err := s.bucket.DeleteFile(ctx, material.StorageKey); err != nil {
    s.log.Warn("Failed to delete stored document", "storage_key", material.StorageKey, "error", err)
  }
  return nil
}

// ownedMaterial loads a material and enforces ownership. Unknown and foreign
// materials are indistinguishable to the caller.
func (s *studyMaterialService) ownedMaterial(ctx context.Context, userID uuid.UUID, materialID uuid.UUID) (*types.StudyMaterial, error) {
  materials, err := s.materialRepo.GetByIDs(ctx, nil, []uuid.UUID{materialID})
  if err != nil {
    return nil, fmt.Errorf("load study material: %w", err)
  }
  if len(materials) == 0 || materials[0] == nil || materials[0].UserID != userID {
    return nil, apperr.ErrUnauthorized
  }
  return materials[0], nil
}
