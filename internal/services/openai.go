package services

import (
  "bufio"
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
  "github.com/browsepilot-org/browsepilot-backend/internal/utils"
)

type openAICompletionService struct {
  log         *logger.Logger
  client      *http.Client
  baseURL     string
  apiKey      string
  model       string
}

func NewOpenAICompletionService(log *logger.Logger) (CompletionService, error) {
  serviceLog := log.With("service", "OpenAICompletionService")
  baseURL := utils.GetEnv("OPENAI_API_URL", "https://api.openai.com/v1", log)
  apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
  if apiKey == "" {
    serviceLog.Warn("OPENAI_API_KEY not set; calls might fail or be unauthorized")
  }
  model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)
  return newOpenAICompatibleService(serviceLog, baseURL, apiKey, model), nil
}

// newOpenAICompatibleService backs every provider speaking the
// /chat/completions SSE protocol.
func newOpenAICompatibleService(serviceLog *logger.Logger, baseURL, apiKey, model string) CompletionService {
  return &openAICompletionService{
    log:      serviceLog,
    client:   &http.Client{Timeout: 90 * time.Second},
    baseURL:  baseURL,
    apiKey:   apiKey,
    model:    model,
  }
}

func (cs *openAICompletionService) StreamCompletion(ctx context.Context, messages []types.ChatMessage, onDelta func(delta string) error) (string, error) {
  reqBody := map[string]interface{}{
    "model":    cs.model,
    "messages": messages,
    "stream":   true,
  }
  bodyBytes, err := json.Marshal(reqBody)
  if err != nil {
    return "", fmt.Errorf("marshal completion request failed: %w", err)
  }

  reqURL := strings.TrimRight(cs.baseURL, "/") + "/chat/completions"
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(bodyBytes))
  if err != nil {
    cs.log.Warn("failed to build completion request", "error", err)
    return "", fmt.Errorf("build completion request failed: %w", err)
  }
  req.Header.Set("Content-Type", "application/json")
  if cs.apiKey != "" {
    req.Header.Set("Authorization", "Bearer "+cs.apiKey)
  }

  resp, err := cs.client.Do(req)
  if err != nil {
    cs.log.Warn("completion request failed", "error", err)
    return "", fmt.Errorf("completion request failed: %w", err)
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    raw, _ := io.ReadAll(resp.Body)
    cs.log.Warn("completion provider responded with non-2xx", "statusCode", resp.StatusCode, "body", string(raw))
    return "", fmt.Errorf("completion provider HTTP %d: %s", resp.StatusCode, string(raw))
  }

  scanner := bufio.NewScanner(resp.Body)
  scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

  var full strings.Builder
  for scanner.Scan() {
    line := strings.TrimSpace(scanner.Text())
    if line == "" || !strings.HasPrefix(line, "data:") {
      continue
    }
    payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
    if payload == "[DONE]" {
      break
    }

    var chunk struct {
      Choices []struct {
        Delta struct {
          Content string `json:"content"`
        } `json:"delta"`
      } `json:"choices"`
    }
    if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
      continue
    }
    if len(chunk.Choices) == 0 {
      continue
    }
    text := chunk.Choices[0].Delta.Content
    if text == "" {
      continue
    }

    full.WriteString(text)
    if err := onDelta(text); err != nil {
      return "", err
    }
  }
  if err := scanner.Err(); err != nil {
    cs.log.Warn("completion stream broke mid-read", "error", err)
    return "", fmt.Errorf("scan completion stream failed: %w", err)
  }
  return full.String(), nil
}
