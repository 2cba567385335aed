package services

import (
  "context"
  "errors"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/browsepilot-org/browsepilot-backend/internal/errordata"
  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
  "github.com/browsepilot-org/browsepilot-backend/internal/socket"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type AiChatService interface {
  ListChats(ctx context.Context, organizationID *uuid.UUID) ([]*types.AiChat, error)
  GetChat(ctx context.Context, chatID uuid.UUID) (*types.AiChat, error)
  CreateChat(ctx context.Context, title string, organizationID *uuid.UUID) (*types.AiChat, error)
  RenameChat(ctx context.Context, chatID uuid.UUID, title string) (*types.AiChat, error)
  DeleteChat(ctx context.Context, chatID uuid.UUID) error
  StreamChatMessage(ctx context.Context, chatID uuid.UUID, newMessages []types.ChatMessage, onDelta func(delta string) error) (string, error)
}

type aiChatService struct {
  db                  *gorm.DB
  log                 *logger.Logger
  chatRepo            repos.AiChatRepo
  membershipService   MembershipService
  completionService   CompletionService
  hub                 *socket.Hub
}

func NewAiChatService(
  db                  *gorm.DB,
  log                 *logger.Logger,
  chatRepo            repos.AiChatRepo,
  membershipService   MembershipService,
  completionService   CompletionService,
  hub                 *socket.Hub,
) AiChatService {
  serviceLog := log.With("service", "AiChatService")
  return &aiChatService{
    db:                 db,
    log:                serviceLog,
    chatRepo:           chatRepo,
    membershipService:  membershipService,
    completionService:  completionService,
    hub:                hub,
  }
}

//----------------------------------------------------------------------------------------------------------------------
// Authorization
//----------------------------------------------------------------------------------------------------------------------

// loadChatAuthorized is the single authorization gate for every
// chat-scoped operation. Existence is checked before authorization, so
// a missing chat always reports ErrChatNotFound, never ErrForbidden.
func (cs *aiChatService) loadChatAuthorized(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.AiChat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    cs.log.Warn("Request Data is not set in context.")
    return nil, fmt.Errorf("Request Data is not set in context.")
  }

  //1) Existence
  chat, err := cs.chatRepo.GetByID(ctx, tx, chatID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      cs.log.Warn("Chat not found", "chatID", chatID)
      return nil, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
    }
    cs.log.Error("Failed to load chat", "chatID", chatID, "error", err)
    return nil, err
  }

  //2) Ownership match
  if chat.OrganizationID != nil {
    if err := cs.membershipService.VerifyOrganizationMembership(ctx, tx, *chat.OrganizationID); err != nil {
      return nil, err
    }
  } else if chat.UserID == nil || *chat.UserID != rd.UserID {
    cs.log.Warn("Unauthorized chat access", "chatID", chatID, "userID", rd.UserID)
    return nil, fmt.Errorf("%w: chat belongs to another user", ErrForbidden)
  }
  return chat, nil
}

//----------------------------------------------------------------------------------------------------------------------
// Session CRUD
//----------------------------------------------------------------------------------------------------------------------

func (cs *aiChatService) ListChats(ctx context.Context, organizationID *uuid.UUID) ([]*types.AiChat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    cs.log.Warn("Request Data is not set in context.")
    return nil, fmt.Errorf("Request Data is not set in context.")
  }
  cs.log.Info("Fetching chats", "userID", rd.UserID, "organizationID", organizationID)

  if organizationID != nil {
    if err := cs.membershipService.VerifyOrganizationMembership(ctx, nil, *organizationID); err != nil {
      return nil, err
    }
    return cs.chatRepo.GetByOrganizationID(ctx, nil, *organizationID)
  }
  return cs.chatRepo.GetByUserID(ctx, nil, rd.UserID)
}

func (cs *aiChatService) GetChat(ctx context.Context, chatID uuid.UUID) (*types.AiChat, error) {
  cs.log.Info("Fetching chat", "chatID", chatID)
  return cs.loadChatAuthorized(ctx, nil, chatID)
}

func (cs *aiChatService) CreateChat(ctx context.Context, title string, organizationID *uuid.UUID) (*types.AiChat, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    cs.log.Warn("Request Data is not set in context.")
    return nil, fmt.Errorf("Request Data is not set in context.")
  }

  chat := &types.AiChat{Title: title}
  if organizationID != nil {
    //1) Membership is verified before anything is written.
    if err := cs.membershipService.VerifyOrganizationMembership(ctx, nil, *organizationID); err != nil {
      return nil, err
    }
    chat.OrganizationID = organizationID
  } else {
    userID := rd.UserID
    chat.UserID = &userID
  }

  created, err := cs.chatRepo.Create(ctx, nil, chat)
  if err != nil {
    return nil, err
  }
  cs.log.Info("Chat created", "chatID", created.ID, "organizationID", organizationID)
  cs.broadcastChatEvent(ctx, "chat.created", created)
  return created, nil
}

func (cs *aiChatService) RenameChat(ctx context.Context, chatID uuid.UUID, title string) (*types.AiChat, error) {
  if _, err := cs.loadChatAuthorized(ctx, nil, chatID); err != nil {
    return nil, err
  }
  updated, err := cs.chatRepo.UpdateTitle(ctx, nil, chatID, title)
  if err != nil {
    return nil, err
  }
  cs.log.Info("Chat renamed", "chatID", chatID, "title", title)
  cs.broadcastChatEvent(ctx, "chat.renamed", updated)
  return updated, nil
}

func (cs *aiChatService) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
  chat, err := cs.loadChatAuthorized(ctx, nil, chatID)
  if err != nil {
    return err
  }
  if err := cs.chatRepo.FullDeleteByID(ctx, nil, chatID); err != nil {
    return err
  }
  cs.log.Info("Chat deleted", "chatID", chatID)
  cs.broadcastChatEvent(ctx, "chat.deleted", chat)
  return nil
}

//----------------------------------------------------------------------------------------------------------------------
// Streaming message turn
//----------------------------------------------------------------------------------------------------------------------

// StreamChatMessage forwards the persisted transcript plus the newly
// submitted turns to the completion provider and relays the reply
// through onDelta as it is generated. The transcript is persisted only
// after the stream completes, so a failed stream leaves the chat
// unchanged. Two overlapping calls on the same chat are not serialized;
// a chat is meant to have one active client.
func (cs *aiChatService) StreamChatMessage(ctx context.Context, chatID uuid.UUID, newMessages []types.ChatMessage, onDelta func(delta string) error) (string, error) {
  //1) Validate the submitted turns.
  if len(newMessages) == 0 {
    return "", fmt.Errorf("%w: messages must not be empty", ErrValidation)
  }
  for _, m := range newMessages {
    if m.Role != types.ChatRoleUser && m.Role != types.ChatRoleAssistant {
      return "", fmt.Errorf("%w: role must be 'user' or 'assistant', got '%s'", ErrValidation, m.Role)
    }
    if m.Content == "" {
      return "", fmt.Errorf("%w: message content must not be empty", ErrValidation)
    }
  }

  //2) Existence + authorization.
  chat, err := cs.loadChatAuthorized(ctx, nil, chatID)
  if err != nil {
    return "", err
  }
  cs.log.Info("Processing new message", "chatID", chatID, "messageCount", len(newMessages))

  persisted, err := chat.DecodeMessages()
  if err != nil {
    cs.log.Error("Failed to decode persisted messages", "chatID", chatID, "error", err)
    return "", err
  }

  //3) Relay the stream.
  history := make([]types.ChatMessage, 0, len(persisted)+len(newMessages))
  history = append(history, persisted...)
  history = append(history, newMessages...)

  full, err := cs.completionService.StreamCompletion(ctx, history, onDelta)
  if err != nil {
    cs.log.Warn("Completion stream failed; persisted chat left unchanged", "chatID", chatID, "error", err)
    return "", fmt.Errorf("%w: %v", ErrCompletionUpstream, err)
  }
  cs.log.Info("Message stream completed", "chatID", chatID, "responseLength", len(full))

  //4) Persist [persisted..., submitted..., reply] now that the stream
  //   finished cleanly.
  updated := append(history, types.ChatMessage{Role: types.ChatRoleAssistant, Content: full})
  if err := cs.chatRepo.UpdateMessages(ctx, nil, chatID, updated); err != nil {
    // The reply already reached the caller; flag the failure without
    // revoking delivered content.
    cs.log.Error("Failed to persist transcript after completed stream", "chatID", chatID, "error", err)
    if ed := errordata.GetErrorData(ctx); ed != nil {
      ed.SetMessage("failed to persist chat transcript")
    }
    return full, err
  }
  return full, nil
}

// broadcastChatEvent announces a lifecycle change on the owning scope's
// channel. The payload is id/title only; transcripts stay behind the
// authorized REST surface.
func (cs *aiChatService) broadcastChatEvent(ctx context.Context, event string, chat *types.AiChat) {
  if cs.hub == nil {
    return
  }
  var channel string
  if chat.OrganizationID != nil {
    channel = fmt.Sprintf("aichats:org:%s", chat.OrganizationID)
  } else if chat.UserID != nil {
    channel = fmt.Sprintf("aichats:user:%s", chat.UserID)
  } else {
    return
  }
  cs.hub.BroadcastGlobal(ctx, socket.Message{
    Channel: channel,
    Event: socket.ChatEvent{
      Event:          event,
      ChatID:         chat.ID,
      Title:          chat.Title,
      UserID:         chat.UserID,
      OrganizationID: chat.OrganizationID,
    },
  })
}
