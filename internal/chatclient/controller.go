package chatclient

import (
  "context"
  "errors"
  "sync"

  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

// State is the controller lifecycle. A controller starts
// Uninitialized, passes through Initializing exactly once per attempt,
// and lands on Active or Failed. Failed controllers may retry.
type State int

const (
  StateUninitialized State = iota
  StateInitializing
  StateActive
  StateFailed
)

func (s State) String() string {
  switch s {
  case StateUninitialized:
    return "uninitialized"
  case StateInitializing:
    return "initializing"
  case StateActive:
    return "active"
  case StateFailed:
    return "failed"
  default:
    return "unknown"
  }
}

var (
  ErrNoActiveChat       = errors.New("no active chat selected")
  ErrAlreadyInitializing = errors.New("initialization already in progress")
)

// DisplayMessage is a transcript entry held by the controller. IDs are
// local only; the server does not assign per-message identifiers, so
// every load re-tags the transcript with fresh ones.
type DisplayMessage struct {
  ID      uuid.UUID `json:"id"`
  Role    string    `json:"role"`
  Content string    `json:"content"`
}

// Controller drives the chat session lifecycle for a consuming UI:
// pick-or-create on startup, transcript loading, and streamed
// submission with optimistic local echo.
type Controller struct {
  mu             sync.Mutex
  log            *logger.Logger
  api            *Client
  organizationID *uuid.UUID

  state    State
  chatID   uuid.UUID
  messages []DisplayMessage
  loading  bool
}

// NewController builds a controller scoped to either the personal
// space (organizationID nil) or one organization. A non-nil
// initialChatID is a deep link: Initialize will select it directly
// without listing or creating.
func NewController(log *logger.Logger, api *Client, organizationID *uuid.UUID, initialChatID *uuid.UUID) *Controller {
  c := &Controller{
    log:            log.With("component", "ChatSessionController"),
    api:            api,
    organizationID: organizationID,
    state:          StateUninitialized,
  }
  if initialChatID != nil {
    c.chatID = *initialChatID
  }
  return c
}

// Initialize is idempotent: once the controller is Active or a run is
// already in flight it returns without issuing any request, so
// repeated invocations can never create more than one chat.
func (c *Controller) Initialize(ctx context.Context) error {
  //1) Claim the run or bail out
  c.mu.Lock()
  switch c.state {
  case StateActive:
    c.mu.Unlock()
    return nil
  case StateInitializing:
    c.mu.Unlock()
    return ErrAlreadyInitializing
  }
  c.state = StateInitializing
  deepLink := c.chatID
  c.mu.Unlock()

  //2) Deep link: the addressable view already names a chat
  if deepLink != uuid.Nil {
    if err := c.Select(ctx, deepLink); err != nil {
      c.fail("failed to load deep-linked chat", err)
      return err
    }
    return nil
  }

  //3) Pick the first existing chat, or create one
  chats, err := c.api.ListChats(ctx, c.organizationID)
  if err != nil {
    c.fail("failed to list chats", err)
    return err
  }
  if len(chats) > 0 {
    if err := c.Select(ctx, chats[0].ID); err != nil {
      c.fail("failed to load existing chat", err)
      return err
    }
    return nil
  }

  chat, err := c.api.CreateChat(ctx, "", c.organizationID)
  if err != nil {
    c.fail("failed to create chat", err)
    return err
  }

  c.mu.Lock()
  c.chatID = chat.ID
  c.messages = nil
  c.state = StateActive
  c.mu.Unlock()
  c.log.Info("Initialized with a fresh chat", "chatID", chat.ID)
  return nil
}

// Select loads a chat's transcript and replaces the local buffer with
// the server's messages under fresh local IDs.
func (c *Controller) Select(ctx context.Context, chatID uuid.UUID) error {
  chat, err := c.api.GetChat(ctx, chatID)
  if err != nil {
    return err
  }
  persisted, err := chat.DecodeMessages()
  if err != nil {
    return err
  }
  fresh := make([]DisplayMessage, 0, len(persisted))
  for _, m := range persisted {
    fresh = append(fresh, DisplayMessage{ID: uuid.New(), Role: m.Role, Content: m.Content})
  }

  c.mu.Lock()
  c.chatID = chat.ID
  c.messages = fresh
  c.state = StateActive
  c.mu.Unlock()
  return nil
}

// Submit sends one user turn. The user message is echoed locally
// before the request; assistant deltas are appended as they arrive. On
// stream failure the optimistic user message stays, any partial
// assistant message is dropped, and loading clears.
func (c *Controller) Submit(ctx context.Context, content string) error {
  //1) Refuse unless a chat is active
  c.mu.Lock()
  if c.state != StateActive || c.chatID == uuid.Nil {
    c.mu.Unlock()
    return ErrNoActiveChat
  }
  c.messages = append(c.messages, DisplayMessage{ID: uuid.New(), Role: types.ChatRoleUser, Content: content})
  c.loading = true
  chatID := c.chatID
  c.mu.Unlock()

  //2) Stream the reply, growing one assistant message per turn
  assistantID := uuid.Nil
  _, err := c.api.StreamMessages(ctx, chatID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: content}}, func(delta string) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if assistantID == uuid.Nil {
      assistantID = uuid.New()
      c.messages = append(c.messages, DisplayMessage{ID: assistantID, Role: types.ChatRoleAssistant, Content: delta})
      return nil
    }
    for i := range c.messages {
      if c.messages[i].ID == assistantID {
        c.messages[i].Content += delta
        break
      }
    }
    return nil
  })

  //3) Settle
  c.mu.Lock()
  defer c.mu.Unlock()
  c.loading = false
  if err != nil {
    if assistantID != uuid.Nil {
      kept := c.messages[:0]
      for _, m := range c.messages {
        if m.ID != assistantID {
          kept = append(kept, m)
        }
      }
      c.messages = kept
    }
    c.log.Warn("Submission failed", "chatID", chatID, "error", err)
    return err
  }
  return nil
}

func (c *Controller) fail(msg string, err error) {
  c.mu.Lock()
  c.state = StateFailed
  c.mu.Unlock()
  c.log.Error(msg, "error", err)
}

func (c *Controller) Messages() []DisplayMessage {
  c.mu.Lock()
  defer c.mu.Unlock()
  out := make([]DisplayMessage, len(c.messages))
  copy(out, c.messages)
  return out
}

func (c *Controller) IsLoading() bool {
  c.mu.Lock()
  defer c.mu.Unlock()
  return c.loading
}

func (c *Controller) HasActiveSession() bool {
  c.mu.Lock()
  defer c.mu.Unlock()
  return c.state == StateActive && c.chatID != uuid.Nil
}

func (c *Controller) State() State {
  c.mu.Lock()
  defer c.mu.Unlock()
  return c.state
}

func (c *Controller) ChatID() uuid.UUID {
  c.mu.Lock()
  defer c.mu.Unlock()
  return c.chatID
}
