package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "sync"
  "testing"

  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/gorm"

  "github.com/browsepilot-org/browsepilot-backend/internal/errordata"
  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

//----------------------------------------------------------------------------------------------------------------------
// Fakes
//----------------------------------------------------------------------------------------------------------------------

type fakeChatRepo struct {
  mu                  sync.Mutex
  chats               map[uuid.UUID]*types.AiChat
  createCalls         int
  failUpdateMessages  bool
}

func newFakeChatRepo() *fakeChatRepo {
  return &fakeChatRepo{chats: map[uuid.UUID]*types.AiChat{}}
}

func (f *fakeChatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.AiChat) (*types.AiChat, error) {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.createCalls++
  if chat.ID == uuid.Nil {
    chat.ID = uuid.New()
  }
  if len(chat.Messages) == 0 {
    if err := chat.EncodeMessages(nil); err != nil {
      return nil, err
    }
  }
  stored := *chat
  f.chats[chat.ID] = &stored
  return chat, nil
}

func (f *fakeChatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.AiChat, error) {
  f.mu.Lock()
  defer f.mu.Unlock()
  chat, ok := f.chats[chatID]
  if !ok {
    return nil, gorm.ErrRecordNotFound
  }
  copied := *chat
  return &copied, nil
}

func (f *fakeChatRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.AiChat, error) {
  f.mu.Lock()
  defer f.mu.Unlock()
  var out []*types.AiChat
  for _, chat := range f.chats {
    if chat.UserID != nil && *chat.UserID == userID && chat.OrganizationID == nil {
      copied := *chat
      out = append(out, &copied)
    }
  }
  return out, nil
}

func (f *fakeChatRepo) GetByOrganizationID(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) ([]*types.AiChat, error) {
  f.mu.Lock()
  defer f.mu.Unlock()
  var out []*types.AiChat
  for _, chat := range f.chats {
    if chat.OrganizationID != nil && *chat.OrganizationID == organizationID {
      copied := *chat
      out = append(out, &copied)
    }
  }
  return out, nil
}

func (f *fakeChatRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, title string) (*types.AiChat, error) {
  f.mu.Lock()
  defer f.mu.Unlock()
  chat, ok := f.chats[chatID]
  if !ok {
    return nil, gorm.ErrRecordNotFound
  }
  chat.Title = title
  copied := *chat
  return &copied, nil
}

func (f *fakeChatRepo) UpdateMessages(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, msgs []types.ChatMessage) error {
  f.mu.Lock()
  defer f.mu.Unlock()
  if f.failUpdateMessages {
    return fmt.Errorf("update messages failed: connection reset")
  }
  chat, ok := f.chats[chatID]
  if !ok {
    return gorm.ErrRecordNotFound
  }
  return chat.EncodeMessages(msgs)
}

func (f *fakeChatRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  f.mu.Lock()
  defer f.mu.Unlock()
  delete(f.chats, chatID)
  return nil
}

func (f *fakeChatRepo) storedMessages(t *testing.T, chatID uuid.UUID) []types.ChatMessage {
  t.Helper()
  f.mu.Lock()
  defer f.mu.Unlock()
  chat, ok := f.chats[chatID]
  require.True(t, ok, "chat %s not stored", chatID)
  msgs, err := chat.DecodeMessages()
  require.NoError(t, err)
  return msgs
}

type fakeMembershipService struct {
  members map[uuid.UUID]map[uuid.UUID]bool
}

func (f *fakeMembershipService) VerifyOrganizationMembership(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return fmt.Errorf("Request Data is not set in context.")
  }
  if f.members[organizationID][rd.UserID] {
    return nil
  }
  return fmt.Errorf("%w: not a member of this organization", ErrForbidden)
}

type fakeCompletionService struct {
  chunks      []string
  failAfter   int // -1 never fails; N fails after emitting N chunks
  gotHistory  []types.ChatMessage
}

func (f *fakeCompletionService) StreamCompletion(ctx context.Context, messages []types.ChatMessage, onDelta func(delta string) error) (string, error) {
  f.gotHistory = messages
  var full strings.Builder
  for i, chunk := range f.chunks {
    if f.failAfter >= 0 && i == f.failAfter {
      return "", fmt.Errorf("provider connection dropped")
    }
    full.WriteString(chunk)
    if err := onDelta(chunk); err != nil {
      return "", err
    }
  }
  if f.failAfter >= 0 && f.failAfter >= len(f.chunks) {
    return "", fmt.Errorf("provider connection dropped")
  }
  return full.String(), nil
}

//----------------------------------------------------------------------------------------------------------------------
// Helpers
//----------------------------------------------------------------------------------------------------------------------

func testLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  require.NoError(t, err)
  return log
}

func ctxForUser(userID uuid.UUID) context.Context {
  return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

func newChatServiceForTest(t *testing.T, repo *fakeChatRepo, membership *fakeMembershipService, completion *fakeCompletionService) AiChatService {
  t.Helper()
  if membership == nil {
    membership = &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{}}
  }
  if completion == nil {
    completion = &fakeCompletionService{failAfter: -1}
  }
  return NewAiChatService(nil, testLogger(t), repo, membership, completion, nil)
}

func noDelta(string) error { return nil }

//----------------------------------------------------------------------------------------------------------------------
// Ownership + authorization
//----------------------------------------------------------------------------------------------------------------------

func TestCreateChatPersonalOwnership(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "My chat", nil)
  require.NoError(t, err)
  require.NotNil(t, chat.UserID)
  assert.Equal(t, userID, *chat.UserID)
  assert.Nil(t, chat.OrganizationID)
}

func TestCreateChatOrganizationOwnership(t *testing.T) {
  repo := newFakeChatRepo()
  userID := uuid.New()
  orgID := uuid.New()
  membership := &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{orgID: {userID: true}}}
  svc := newChatServiceForTest(t, repo, membership, nil)

  chat, err := svc.CreateChat(ctxForUser(userID), "Team chat", &orgID)
  require.NoError(t, err)
  require.NotNil(t, chat.OrganizationID)
  assert.Equal(t, orgID, *chat.OrganizationID)
  assert.Nil(t, chat.UserID, "organization chats must not carry a user owner")
}

func TestCreateChatRejectsNonMemberBeforeWriting(t *testing.T) {
  repo := newFakeChatRepo()
  orgID := uuid.New()
  svc := newChatServiceForTest(t, repo, &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{}}, nil)

  _, err := svc.CreateChat(ctxForUser(uuid.New()), "Team chat", &orgID)
  require.ErrorIs(t, err, ErrForbidden)
  assert.Equal(t, 0, repo.createCalls, "nothing may be written for a rejected create")
}

func TestGetChatMissingIsNotFoundNotForbidden(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)

  _, err := svc.GetChat(ctxForUser(uuid.New()), uuid.New())
  require.ErrorIs(t, err, ErrChatNotFound)
  assert.NotErrorIs(t, err, ErrForbidden)
}

func TestGetChatOtherUsersChatIsForbidden(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  owner := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(owner), "", nil)
  require.NoError(t, err)

  _, err = svc.GetChat(ctxForUser(uuid.New()), chat.ID)
  require.ErrorIs(t, err, ErrForbidden)
}

func TestGetChatOrgChatRequiresMembership(t *testing.T) {
  repo := newFakeChatRepo()
  owner := uuid.New()
  member := uuid.New()
  outsider := uuid.New()
  orgID := uuid.New()
  membership := &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{orgID: {owner: true, member: true}}}
  svc := newChatServiceForTest(t, repo, membership, nil)

  chat, err := svc.CreateChat(ctxForUser(owner), "", &orgID)
  require.NoError(t, err)

  // Any member may read; a non-member may not, even knowing the id.
  _, err = svc.GetChat(ctxForUser(member), chat.ID)
  require.NoError(t, err)
  _, err = svc.GetChat(ctxForUser(outsider), chat.ID)
  require.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteChatThenGetIsNotFound(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "", nil)
  require.NoError(t, err)
  require.NoError(t, svc.DeleteChat(ctxForUser(userID), chat.ID))

  _, err = svc.GetChat(ctxForUser(userID), chat.ID)
  require.ErrorIs(t, err, ErrChatNotFound)
}

func TestRenameChatAuthorizes(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  owner := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(owner), "old", nil)
  require.NoError(t, err)

  _, err = svc.RenameChat(ctxForUser(uuid.New()), chat.ID, "hijacked")
  require.ErrorIs(t, err, ErrForbidden)

  renamed, err := svc.RenameChat(ctxForUser(owner), chat.ID, "new title")
  require.NoError(t, err)
  assert.Equal(t, "new title", renamed.Title)
}

//----------------------------------------------------------------------------------------------------------------------
// Listing
//----------------------------------------------------------------------------------------------------------------------

func TestListChatsPersonalScopeExcludesOrgChats(t *testing.T) {
  repo := newFakeChatRepo()
  userID := uuid.New()
  orgID := uuid.New()
  membership := &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{orgID: {userID: true}}}
  svc := newChatServiceForTest(t, repo, membership, nil)

  personal, err := svc.CreateChat(ctxForUser(userID), "mine", nil)
  require.NoError(t, err)
  _, err = svc.CreateChat(ctxForUser(userID), "team", &orgID)
  require.NoError(t, err)

  chats, err := svc.ListChats(ctxForUser(userID), nil)
  require.NoError(t, err)
  require.Len(t, chats, 1)
  assert.Equal(t, personal.ID, chats[0].ID)
}

func TestListChatsOrgScopeRequiresMembership(t *testing.T) {
  repo := newFakeChatRepo()
  orgID := uuid.New()
  member := uuid.New()
  membership := &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{orgID: {member: true}}}
  svc := newChatServiceForTest(t, repo, membership, nil)

  _, err := svc.ListChats(ctxForUser(uuid.New()), &orgID)
  require.ErrorIs(t, err, ErrForbidden)

  chats, err := svc.ListChats(ctxForUser(member), &orgID)
  require.NoError(t, err)
  assert.Empty(t, chats)
}

func TestListChatsIsReadOnly(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  userID := uuid.New()

  for i := 0; i < 3; i++ {
    chats, err := svc.ListChats(ctxForUser(userID), nil)
    require.NoError(t, err)
    assert.Empty(t, chats)
  }
  assert.Equal(t, 0, repo.createCalls, "listing must never create chats")
}

//----------------------------------------------------------------------------------------------------------------------
// Streaming turns
//----------------------------------------------------------------------------------------------------------------------

func TestStreamChatMessageValidatesInput(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)
  ctx := ctxForUser(uuid.New())

  _, err := svc.StreamChatMessage(ctx, uuid.New(), nil, noDelta)
  require.ErrorIs(t, err, ErrValidation)

  _, err = svc.StreamChatMessage(ctx, uuid.New(), []types.ChatMessage{{Role: "system", Content: "hi"}}, noDelta)
  require.ErrorIs(t, err, ErrValidation)

  _, err = svc.StreamChatMessage(ctx, uuid.New(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: ""}}, noDelta)
  require.ErrorIs(t, err, ErrValidation)
}

func TestStreamChatMessageValidationPrecedesExistence(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)

  // Invalid body against a missing chat reports the validation error.
  _, err := svc.StreamChatMessage(ctxForUser(uuid.New()), uuid.New(), []types.ChatMessage{{Role: "ghost", Content: "x"}}, noDelta)
  require.ErrorIs(t, err, ErrValidation)
  assert.NotErrorIs(t, err, ErrChatNotFound)
}

func TestStreamChatMessageRelaysDeltasAndPersists(t *testing.T) {
  repo := newFakeChatRepo()
  completion := &fakeCompletionService{chunks: []string{"Hel", "lo ", "there"}, failAfter: -1}
  svc := newChatServiceForTest(t, repo, nil, completion)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "", nil)
  require.NoError(t, err)

  var deltas []string
  full, err := svc.StreamChatMessage(ctxForUser(userID), chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, func(d string) error {
    deltas = append(deltas, d)
    return nil
  })
  require.NoError(t, err)
  assert.Equal(t, "Hello there", full)
  assert.Equal(t, []string{"Hel", "lo ", "there"}, deltas)

  stored := repo.storedMessages(t, chat.ID)
  require.Len(t, stored, 2)
  assert.Equal(t, types.ChatMessage{Role: types.ChatRoleUser, Content: "Hi"}, stored[0])
  assert.Equal(t, types.ChatMessage{Role: types.ChatRoleAssistant, Content: "Hello there"}, stored[1])
}

func TestStreamChatMessageAppendsAcrossTurns(t *testing.T) {
  repo := newFakeChatRepo()
  completion := &fakeCompletionService{chunks: []string{"ok"}, failAfter: -1}
  svc := newChatServiceForTest(t, repo, nil, completion)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "", nil)
  require.NoError(t, err)

  const turns = 4
  for i := 0; i < turns; i++ {
    _, err := svc.StreamChatMessage(ctxForUser(userID), chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: fmt.Sprintf("turn %d", i)}}, noDelta)
    require.NoError(t, err)
  }

  stored := repo.storedMessages(t, chat.ID)
  require.Len(t, stored, turns*2, "every turn adds exactly one user and one assistant message")
  for i := 0; i < turns; i++ {
    assert.Equal(t, fmt.Sprintf("turn %d", i), stored[i*2].Content)
    assert.Equal(t, types.ChatRoleUser, stored[i*2].Role)
    assert.Equal(t, types.ChatRoleAssistant, stored[i*2+1].Role)
  }

  // The provider sees the whole accumulated history plus the new turn.
  assert.Len(t, completion.gotHistory, (turns-1)*2+1)
}

func TestStreamChatMessageFailureLeavesTranscriptUntouched(t *testing.T) {
  repo := newFakeChatRepo()
  good := &fakeCompletionService{chunks: []string{"first reply"}, failAfter: -1}
  svc := newChatServiceForTest(t, repo, nil, good)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "", nil)
  require.NoError(t, err)
  _, err = svc.StreamChatMessage(ctxForUser(userID), chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.NoError(t, err)
  before := repo.storedMessages(t, chat.ID)

  failing := &fakeCompletionService{chunks: []string{"par", "tial"}, failAfter: 1}
  svc = NewAiChatService(nil, testLogger(t), repo, &fakeMembershipService{members: map[uuid.UUID]map[uuid.UUID]bool{}}, failing, nil)

  _, err = svc.StreamChatMessage(ctxForUser(userID), chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Again"}}, noDelta)
  require.ErrorIs(t, err, ErrCompletionUpstream)

  assert.Equal(t, before, repo.storedMessages(t, chat.ID), "a failed stream must not modify the transcript")
}

func TestStreamChatMessageAuthorizesBeforeCallingProvider(t *testing.T) {
  repo := newFakeChatRepo()
  completion := &fakeCompletionService{chunks: []string{"leak"}, failAfter: -1}
  svc := newChatServiceForTest(t, repo, nil, completion)
  owner := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(owner), "", nil)
  require.NoError(t, err)

  _, err = svc.StreamChatMessage(ctxForUser(uuid.New()), chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.ErrorIs(t, err, ErrForbidden)
  assert.Nil(t, completion.gotHistory, "provider must not be called for a forbidden chat")
}

func TestStreamChatMessagePersistFailureFlagsErrorData(t *testing.T) {
  repo := newFakeChatRepo()
  completion := &fakeCompletionService{chunks: []string{"reply"}, failAfter: -1}
  svc := newChatServiceForTest(t, repo, nil, completion)
  userID := uuid.New()

  chat, err := svc.CreateChat(ctxForUser(userID), "", nil)
  require.NoError(t, err)

  repo.failUpdateMessages = true
  ctx := errordata.WithErrorData(ctxForUser(userID))

  full, err := svc.StreamChatMessage(ctx, chat.ID, []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.Error(t, err)
  assert.Equal(t, "reply", full, "delivered content is returned even when the persist fails")

  ed := errordata.GetErrorData(ctx)
  require.NotNil(t, ed)
  assert.True(t, ed.HasMessage())
}

func TestStreamChatMessageWithoutIdentityFails(t *testing.T) {
  repo := newFakeChatRepo()
  svc := newChatServiceForTest(t, repo, nil, nil)

  _, err := svc.StreamChatMessage(context.Background(), uuid.New(), []types.ChatMessage{{Role: types.ChatRoleUser, Content: "Hi"}}, noDelta)
  require.Error(t, err)
  assert.False(t, errors.Is(err, ErrChatNotFound))
}
