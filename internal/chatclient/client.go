package chatclient

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

  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

// Client is a typed consumer of the /api/ai surface, including the
// event-stream message endpoint.
type Client struct {
  log         *logger.Logger
  httpClient  *http.Client
  baseURL     string
  token       string
}

func NewClient(log *logger.Logger, baseURL, token string) *Client {
  return &Client{
    log:        log.With("component", "ChatClient"),
    httpClient: &http.Client{Timeout: 90 * time.Second},
    baseURL:    strings.TrimRight(baseURL, "/"),
    token:      token,
  }
}

func (c *Client) ListChats(ctx context.Context, organizationID *uuid.UUID) ([]types.AiChat, error) {
  reqURL := c.baseURL + "/api/ai/chats"
  if organizationID != nil {
    reqURL += "?organizationId=" + organizationID.String()
  }
  var chats []types.AiChat
  if err := c.doJSON(ctx, http.MethodGet, reqURL, nil, &chats); err != nil {
    return nil, err
  }
  return chats, nil
}

func (c *Client) GetChat(ctx context.Context, chatID uuid.UUID) (*types.AiChat, error) {
  var chat types.AiChat
  if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/ai/chats/"+chatID.String(), nil, &chat); err != nil {
    return nil, err
  }
  return &chat, nil
}

func (c *Client) CreateChat(ctx context.Context, title string, organizationID *uuid.UUID) (*types.AiChat, error) {
  body := map[string]interface{}{}
  if title != "" {
    body["title"] = title
  }
  if organizationID != nil {
    body["organizationId"] = organizationID.String()
  }
  var chat types.AiChat
  if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/ai/chats", body, &chat); err != nil {
    return nil, err
  }
  return &chat, nil
}

func (c *Client) RenameChat(ctx context.Context, chatID uuid.UUID, title string) (*types.AiChat, error) {
  var chat types.AiChat
  if err := c.doJSON(ctx, http.MethodPut, c.baseURL+"/api/ai/chats/"+chatID.String(), map[string]interface{}{"title": title}, &chat); err != nil {
    return nil, err
  }
  return &chat, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
  return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/api/ai/chats/"+chatID.String(), nil, nil)
}

// StreamMessages posts new turns and consumes the event stream,
// invoking onDelta for every token chunk. It returns the full reply
// reported by the terminal done event.
func (c *Client) StreamMessages(ctx context.Context, chatID uuid.UUID, messages []types.ChatMessage, onDelta func(delta string) error) (string, error) {
  payload, err := json.Marshal(map[string]interface{}{"messages": messages})
  if err != nil {
    return "", fmt.Errorf("marshal messages failed: %w", err)
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ai/chats/"+chatID.String()+"/messages", bytes.NewReader(payload))
  if err != nil {
    return "", fmt.Errorf("build stream request failed: %w", err)
  }
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("Authorization", "Bearer "+c.token)

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return "", fmt.Errorf("stream request failed: %w", err)
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return "", decodeAPIError(resp)
  }

  scanner := bufio.NewScanner(resp.Body)
  scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

  var full strings.Builder
  event := ""
  for scanner.Scan() {
    line := strings.TrimSpace(scanner.Text())
    if line == "" {
      event = ""
      continue
    }
    if strings.HasPrefix(line, "event:") {
      event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
      continue
    }
    if !strings.HasPrefix(line, "data:") {
      continue
    }
    data := unsanitizeSSE(strings.TrimSpace(strings.TrimPrefix(line, "data:")))

    switch event {
    case "error":
      return "", fmt.Errorf("stream error: %s", data)
    case "done":
      return data, nil
    default:
      full.WriteString(data)
      if err := onDelta(data); err != nil {
        return "", err
      }
    }
  }
  if err := scanner.Err(); err != nil {
    return "", fmt.Errorf("scan response stream failed: %w", err)
  }
  // The stream ended without a terminal event; treat what arrived as
  // the reply.
  return full.String(), nil
}

func (c *Client) doJSON(ctx context.Context, method, reqURL string, body interface{}, out interface{}) error {
  var reader io.Reader
  if body != nil {
    raw, err := json.Marshal(body)
    if err != nil {
      return fmt.Errorf("marshal request body failed: %w", err)
    }
    reader = bytes.NewReader(raw)
  }
  req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
  if err != nil {
    return fmt.Errorf("build request failed: %w", err)
  }
  if body != nil {
    req.Header.Set("Content-Type", "application/json")
  }
  req.Header.Set("Authorization", "Bearer "+c.token)

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return fmt.Errorf("request failed: %w", err)
  }
  defer resp.Body.Close()

  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return decodeAPIError(resp)
  }
  if out == nil {
    return nil
  }
  if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
    return fmt.Errorf("decode response failed: %w", err)
  }
  return nil
}

func decodeAPIError(resp *http.Response) error {
  raw, _ := io.ReadAll(resp.Body)
  var parsed struct {
    Error string `json:"error"`
  }
  if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
    return fmt.Errorf("HTTP %d: %s", resp.StatusCode, parsed.Error)
  }
  return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
}

func unsanitizeSSE(input string) string {
  return strings.ReplaceAll(input, "\\n", "\n")
}
