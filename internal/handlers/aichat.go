package handlers

import (
  "errors"
  "fmt"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/errordata"
  "github.com/browsepilot-org/browsepilot-backend/internal/services"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type AiChatHandler struct {
  chatService services.AiChatService
}

func NewAiChatHandler(chatService services.AiChatService) *AiChatHandler {
  return &AiChatHandler{chatService: chatService}
}

type CreateChatRequest struct {
  Title           string      `json:"title"`
  OrganizationID  *uuid.UUID  `json:"organizationId"`
}

type RenameChatRequest struct {
  Title           string      `json:"title"`
}

type ChatMessageRequest struct {
  Role            string      `json:"role" binding:"required,oneof=user assistant"`
  Content         string      `json:"content" binding:"required"`
}

type SendMessagesRequest struct {
  Messages        []ChatMessageRequest  `json:"messages" binding:"required,min=1,dive"`
}

func (h *AiChatHandler) ListChats(c *gin.Context) {
  var organizationID *uuid.UUID
  if raw := c.Query("organizationId"); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organizationId"})
      return
    }
    organizationID = &parsed
  }
  chats, err := h.chatService.ListChats(c.Request.Context(), organizationID)
  if err != nil {
    abortWithChatError(c, err)
    return
  }
  c.JSON(http.StatusOK, chats)
}

func (h *AiChatHandler) GetChat(c *gin.Context) {
  chatID, ok := parseChatID(c)
  if !ok {
    return
  }
  chat, err := h.chatService.GetChat(c.Request.Context(), chatID)
  if err != nil {
    abortWithChatError(c, err)
    return
  }
  c.JSON(http.StatusOK, chat)
}

func (h *AiChatHandler) CreateChat(c *gin.Context) {
  var req CreateChatRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  chat, err := h.chatService.CreateChat(c.Request.Context(), req.Title, req.OrganizationID)
  if err != nil {
    abortWithChatError(c, err)
    return
  }
  c.JSON(http.StatusOK, chat)
}

func (h *AiChatHandler) RenameChat(c *gin.Context) {
  chatID, ok := parseChatID(c)
  if !ok {
    return
  }
  var req RenameChatRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  chat, err := h.chatService.RenameChat(c.Request.Context(), chatID, req.Title)
  if err != nil {
    abortWithChatError(c, err)
    return
  }
  c.JSON(http.StatusOK, chat)
}

func (h *AiChatHandler) DeleteChat(c *gin.Context) {
  chatID, ok := parseChatID(c)
  if !ok {
    return
  }
  if err := h.chatService.DeleteChat(c.Request.Context(), chatID); err != nil {
    abortWithChatError(c, err)
    return
  }
  c.Status(http.StatusNoContent)
}

// SendMessages relays the model reply to the caller as it is generated.
// The response is the stream: "data:" lines carry token chunks, "event:
// done" carries the concatenated reply, "event: error" reports failure.
func (h *AiChatHandler) SendMessages(c *gin.Context) {
  chatID, ok := parseChatID(c)
  if !ok {
    return
  }
  var req SendMessagesRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  newMessages := make([]types.ChatMessage, 0, len(req.Messages))
  for _, m := range req.Messages {
    newMessages = append(newMessages, types.ChatMessage{Role: m.Role, Content: m.Content})
  }

  flusher, ok := c.Writer.(http.Flusher)
  if !ok {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "stream not supported"})
    return
  }

  // Errors before the first byte still map onto plain statuses; once
  // streaming starts they ride the stream instead.
  streaming := false
  startStream := func() {
    c.Header("Content-Type", "text/event-stream")
    c.Header("Cache-Control", "no-cache")
    c.Header("Connection", "keep-alive")
    c.Header("X-Accel-Buffering", "no")
    streaming = true
  }

  full, err := h.chatService.StreamChatMessage(c.Request.Context(), chatID, newMessages, func(delta string) error {
    if !streaming {
      startStream()
    }
    if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(delta) + "\n\n")); writeErr != nil {
      return writeErr
    }
    flusher.Flush()
    return nil
  })
  if err != nil {
    if !streaming {
      abortWithChatError(c, err)
      return
    }
    msg := err.Error()
    if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
      msg = ed.Message
    }
    if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE(msg)))); writeErr == nil {
      flusher.Flush()
    }
    return
  }
  if !streaming {
    startStream()
  }

  if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
    flusher.Flush()
  }
}

func parseChatID(c *gin.Context) (uuid.UUID, bool) {
  chatID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
    return uuid.Nil, false
  }
  return chatID, true
}

func abortWithChatError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, services.ErrChatNotFound):
    c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
  case errors.Is(err, services.ErrForbidden):
    c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
  case errors.Is(err, services.ErrValidation):
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
  case errors.Is(err, services.ErrCompletionUpstream):
    c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
  default:
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
  }
}

func sanitizeSSE(input string) string {
  replaced := strings.ReplaceAll(input, "\r\n", "\\n")
  replaced = strings.ReplaceAll(replaced, "\n", "\\n")
  return replaced
}
