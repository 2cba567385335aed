package services

import (
  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/utils"
)

// DeepSeek speaks the OpenAI chat-completions protocol, so the provider
// only differs in configuration.
func NewDeepseekCompletionService(log *logger.Logger) (CompletionService, error) {
  serviceLog := log.With("service", "DeepseekCompletionService")
  baseURL := utils.GetEnv("DEEPSEEK_API_URL", "https://api.deepseek.com", log)
  apiKey := utils.GetEnv("DEEPSEEK_API_KEY", "", log)
  if apiKey == "" {
    serviceLog.Warn("DEEPSEEK_API_KEY not set; calls might fail or be unauthorized")
  }
  model := utils.GetEnv("DEEPSEEK_MODEL", "deepseek-chat", log)
  return newOpenAICompatibleService(serviceLog, baseURL, apiKey, model), nil
}
