package services

import (
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "net/http/httptest"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

func sseChunk(content string) string {
  payload, _ := json.Marshal(map[string]interface{}{
    "choices": []map[string]interface{}{
      {"delta": map[string]string{"content": content}},
    },
  })
  return "data: " + string(payload) + "\n\n"
}

func TestStreamCompletionParsesDeltas(t *testing.T) {
  var gotAuth string
  var gotBody struct {
    Model    string              `json:"model"`
    Messages []types.ChatMessage `json:"messages"`
    Stream   bool                `json:"stream"`
  }
  server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    gotAuth = r.Header.Get("Authorization")
    require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

    w.Header().Set("Content-Type", "text/event-stream")
    fmt.Fprint(w, sseChunk("Hel"))
    fmt.Fprint(w, sseChunk("lo"))
    // Empty deltas and role-only chunks are skipped, not errors.
    fmt.Fprint(w, sseChunk(""))
    fmt.Fprint(w, "data: [DONE]\n\n")
  }))
  defer server.Close()

  svc := newOpenAICompatibleService(testLogger(t), server.URL, "test-key", "test-model")

  var deltas []string
  full, err := svc.StreamCompletion(context.Background(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, func(d string) error {
    deltas = append(deltas, d)
    return nil
  })
  require.NoError(t, err)
  assert.Equal(t, "Hello", full)
  assert.Equal(t, []string{"Hel", "lo"}, deltas)

  assert.Equal(t, "Bearer test-key", gotAuth)
  assert.Equal(t, "test-model", gotBody.Model)
  assert.True(t, gotBody.Stream)
  require.Len(t, gotBody.Messages, 1)
  assert.Equal(t, "Hi", gotBody.Messages[0].Content)
}

func TestStreamCompletionNon2xxIsError(t *testing.T) {
  server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
  }))
  defer server.Close()

  svc := newOpenAICompatibleService(testLogger(t), server.URL, "bad-key", "test-model")

  _, err := svc.StreamCompletion(context.Background(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.Error(t, err)
  assert.Contains(t, err.Error(), "401")
}

func TestStreamCompletionOnDeltaErrorStopsStream(t *testing.T) {
  server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/event-stream")
    fmt.Fprint(w, sseChunk("one"))
    fmt.Fprint(w, sseChunk("two"))
    fmt.Fprint(w, "data: [DONE]\n\n")
  }))
  defer server.Close()

  svc := newOpenAICompatibleService(testLogger(t), server.URL, "", "test-model")

  sinkErr := fmt.Errorf("client went away")
  _, err := svc.StreamCompletion(context.Background(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, func(d string) error {
    return sinkErr
  })
  require.ErrorIs(t, err, sinkErr)
}

func TestStreamCompletionStopsAtDoneMarker(t *testing.T) {
  server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/event-stream")
    fmt.Fprint(w, sseChunk("before"))
    fmt.Fprint(w, "data: [DONE]\n\n")
    fmt.Fprint(w, sseChunk("after"))
  }))
  defer server.Close()

  svc := newOpenAICompatibleService(testLogger(t), server.URL, "", "test-model")

  full, err := svc.StreamCompletion(context.Background(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.NoError(t, err)
  assert.Equal(t, "before", full)
}
