package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "mime/multipart"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/yungbote/prepgraph-backend/internal/logger"
)

// OCRResult is the parsed response of the document parsing endpoint.
type OCRResult struct {
  Text       string   `json:"text"`
  Pages      []string `json:"pages"`
  PageCount  int      `json:"page_count"`
  Language   string   `json:"language"`
  Confidence float64  `json:"confidence"`
}

type OCRClient interface {
  ExtractText(ctx context.Context, filename string, document io.Reader) (*OCRResult, error)
}

type ocrClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  httpClient *http.Client
}

func NewOCRClient(log *logger.Logger) (OCRClient, error) {
  apiKey := os.Getenv("OCR_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing OCR_API_KEY")
  }

  baseURL := os.Getenv("OCR_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.upstage.ai"
  }

  timeoutSec := 120
  if v := os.Getenv("OCR_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  return &ocrClient{
    log:        log.With("service", "OCRClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }, nil
}

// Remote response shape is not guaranteed; every field is optional here and
// defaulted on absence.
type ocrResponse struct {
  Content struct {
    Text       string          `json:"text"`
    Pages      json.RawMessage `json:"pages"`
    Language   string          `json:"language"`
    Confidence float64         `json:"confidence"`
  } `json:"content"`
}

func (c *ocrClient) ExtractText(ctx context.Context, filename string, document io.Reader) (*OCRResult, error) {
  var buf bytes.Buffer
  writer := multipart.NewWriter(&buf)

  part, err := writer.CreateFormFile("document", filename)
  if err != nil {
    return nil, fmt.Errorf("build multipart body: %w", err)
  }
  if _, err := io.Copy(part, document); err != nil {
    return nil, fmt.Errorf("copy document into multipart body: %w", err)
  }
  if err := writer.Close(); err != nil {
    return nil, fmt.Errorf("finalize multipart body: %w", err)
  }

  req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/document-ai/ocr", &buf)
  if err != nil {
    return nil, err
  }
  req.Header.Set("Authorization", "Bearer "+c.apiKey)
  req.Header.Set("Content-Type", writer.FormDataContentType())

  // One shot: the pipeline's run-level retry policy owns re-attempts, so the
  // client itself does not retry.
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, fmt.Errorf("ocr request failed: %w", err)
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return nil, fmt.Errorf("read ocr response: %w", readErr)
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return nil, fmt.Errorf("ocr http %d: %s", resp.StatusCode, string(raw))
  }

  var parsed ocrResponse
  if err := json.Unmarshal(raw, &parsed); err != nil {
    return nil, fmt.Errorf("decode ocr response: %w", err)
  }

  result := &OCRResult{
    Text:       parsed.Content.Text,
    Language:   parsed.Content.Language,
    Confidence: parsed.Content.Confidence,
  }
  result.Pages = parseOCRPages(parsed.Content.Pages)
  result.PageCount = len(result.Pages)
  if result.PageCount == 0 && strings.TrimSpace(result.Text) != "" {
    result.PageCount = 1
  }

  if strings.TrimSpace(result.Text) == "" {
    return nil, fmt.Errorf("ocr returned no text for %s", filename)
  }

  c.log.Debug("OCR extraction complete",
    "filename", filename,
    "page_count", result.PageCount,
    "language", result.Language,
    "confidence", result.Confidence,
  )
  return result, nil
}

// parseOCRPages tolerates both ["text", ...] and [{"text": ...}, ...] shapes.
func parseOCRPages(raw json.RawMessage) []string {
  if len(raw) == 0 {
    return []string{}
  }
  var asStrings []string
  if err := json.Unmarshal(raw, &asStrings); err == nil {
    return asStrings
  }
  var asObjects []struct {
    Text string `json:"text"`
  }
  if err := json.Unmarshal(raw, &asObjects); err == nil {
    out := make([]string, 0, len(asObjects))
    for _, p := range asObjects {
      out = append(out, p.Text)
    }
    return out
  }
  return []string{}
}
