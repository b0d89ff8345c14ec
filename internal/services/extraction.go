package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/yungbote/prepgraph-backend/internal/logger"
  "github.com/yungbote/prepgraph-backend/internal/repos"
  "github.com/yungbote/prepgraph-backend/internal/types"
)

const extractionSystemPrompt = `You extract multiple-choice exam questions from study material text.
Respond with a JSON object of the shape:
{"questions":[{"content":string,"options":[string,string,string,string],"correct_answer":int,"difficulty":int,"topic":string,"explanation":string}]}
Rules:
- exactly 4 options per question
- correct_answer is the 0-based index of the correct option
- difficulty is an integer from 1 (easiest) to 5 (hardest)
- only include questions actually supported by the text`

// extractedQuestion is the validated wire shape of one model-produced
// question. Decoding fails closed: a shape mismatch aborts the whole batch.
type extractedQuestion struct {
  Content       string   `json:"content"`
  Options       []string `json:"options"`
  CorrectAnswer int      `json:"correct_answer"`
  Difficulty    int      `json:"difficulty"`
  Topic         string   `json:"topic"`
  Explanation   string   `json:"explanation"`
}

type extractionPayload struct {
  Questions []extractedQuestion `json:"questions"`
}

type QuestionExtractionService interface {
  ExtractQuestions(ctx context.Context, materialID uuid.UUID, text string) ([]*types.Question, error)
}

type questionExtractionService struct {
  db  *gorm.DB
  log *logger.Logger

  questionRepo repos.QuestionRepo
  optionRepo   repos.QuestionOptionRepo

  ai OpenAIClient
}

func NewQuestionExtractionService(
  db *gorm.DB,
  baseLog *logger.Logger,
  questionRepo repos.QuestionRepo,
  optionRepo repos.QuestionOptionRepo,
  ai OpenAIClient,
) QuestionExtractionService {
  return &questionExtractionService{
    db:           db,
    log:          baseLog.With("service", "QuestionExtractionService"),
    questionRepo: questionRepo,
    optionRepo:   optionRepo,
    ai:           ai,
  }
}

func (s *questionExtractionService) ExtractQuestions(ctx context.Context, materialID uuid.UUID, text string) ([]*types.Question, error) {
  if materialID == uuid.Nil {
    return nil, fmt.Errorf("materialID required")
  }
  if strings.TrimSpace(text) == "" {
    return nil, fmt.Errorf("no text to extract questions from")
  }

  raw, err := s.ai.GenerateJSON(ctx, extractionSystemPrompt,
    fmt.Sprintf("Study material text:\n%s\n\nExtract the multiple-choice questions.", truncate(text, 24000)),
  )
  if err != nil {
    return nil, fmt.Errorf("extraction completion failed: %w", err)
  }

  payload, err := decodeExtractionPayload(raw)
  if err != nil {
    return nil, err
  }
  if len(payload.Questions) == 0 {
    return []*types.Question{}, nil
  }

  questions, options, err := buildQuestionRows(materialID, payload.Questions)
  if err != nil {
    return nil, err
  }

  // All-or-nothing: question and option rows land in one transaction so a
  // failed option insert cannot leave half a batch behind.
  err = s.runInTx(ctx, func(tx *gorm.DB) error {
    if _, err := s.questionRepo.Create(ctx, tx, questions); err != nil {
      return fmt.Errorf("create questions: %w", err)
    }
    if _, err := s.optionRepo.Create(ctx, tx, options); err != nil {
      return fmt.Errorf("create options: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }

  s.log.Info("Extracted questions", "material_id", materialID, "count", len(questions))
  return questions, nil
}

func (s *questionExtractionService) runInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
  if s.db == nil {
    return fn(nil)
  }
  return s.db.WithContext(ctx).Transaction(fn)
}

func decodeExtractionPayload(raw json.RawMessage) (*extractionPayload, error) {
  dec := json.NewDecoder(strings.NewReader(string(raw)))
  dec.DisallowUnknownFields()
  var payload extractionPayload
  if err := dec.Decode(&payload); err != nil {
    return nil, fmt.Errorf("extraction response shape invalid: %w", err)
  }
  return &payload, nil
}

// buildQuestionRows validates each extracted entry and materializes the
// question/option rows, marking exactly the option at correct_answer correct.
func buildQuestionRows(materialID uuid.UUID, extracted []extractedQuestion) ([]*types.Question, []*types.QuestionOption, error) {
  now := time.Now()
  questions := make([]*types.Question, 0, len(extracted))
  options := make([]*types.QuestionOption, 0, len(extracted)*4)

  for i, eq := range extracted {
    if strings.TrimSpace(eq.Content) == "" {
      return nil, nil, fmt.Errorf("question %d: empty content", i)
    }
    if len(eq.Options) != 4 {
      return nil, nil, fmt.Errorf("question %d: expected 4 options, got %d", i, len(eq.Options))
    }
    if eq.CorrectAnswer < 0 || eq.CorrectAnswer >= len(eq.Options) {
      return nil, nil, fmt.Errorf("question %d: correct_answer %d out of range", i, eq.CorrectAnswer)
    }
    difficulty := eq.Difficulty
    if difficulty < 1 || difficulty > 5 {
      difficulty = 3
    }

    q := &types.Question{
      ID:              uuid.New(),
      StudyMaterialID: materialID,
      Content:         eq.Content,
      QuestionType:    types.QuestionTypeMultipleChoice,
      Difficulty:      difficulty,
      Topic:           eq.Topic,
      Explanation:     eq.Explanation,
      CorrectAnswer:   eq.Options[eq.CorrectAnswer],
      CreatedAt:       now,
      UpdatedAt:       now,
    }
    questions = append(questions, q)

    for oi, content := range eq.Options {
      options = append(options, &types.QuestionOption{
        ID:         uuid.New(),
        QuestionID: q.ID,
        Index:      oi,
        Content:    content,
        IsCorrect:  oi == eq.CorrectAnswer,
        CreatedAt:  now,
        UpdatedAt:  now,
      })
    }
  }
  return questions, options, nil
}
