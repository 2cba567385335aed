package services

import (
  "context"
  "fmt"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
  "github.com/browsepilot-org/browsepilot-backend/internal/utils"
)

// CompletionService is the strategy boundary to the hosted LLM. The
// concrete backend is chosen once at startup and injected; nothing else
// reads provider configuration.
type CompletionService interface {
  // StreamCompletion forwards the conversation and relays generated
  // text through onDelta as it arrives. It returns the concatenated
  // full reply once the stream finishes.
  StreamCompletion(ctx context.Context, messages []types.ChatMessage, onDelta func(delta string) error) (string, error)
}

func NewCompletionServiceFromEnv(log *logger.Logger) (CompletionService, error) {
  provider := utils.GetEnv("AI_PROVIDER", "openai", log)
  switch provider {
  case "openai":
    return NewOpenAICompletionService(log)
  case "deepseek":
    return NewDeepseekCompletionService(log)
  default:
    return nil, fmt.Errorf("unknown AI_PROVIDER '%s' (must be 'openai' or 'deepseek')", provider)
  }
}
