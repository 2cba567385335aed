package repos

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/browsepilot-org/browsepilot-backend/internal/logger"
    "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type AiChatRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, chat *types.AiChat) (*types.AiChat, error)

    // READ
    GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.AiChat, error)
    GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.AiChat, error)
    GetByOrganizationID(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) ([]*types.AiChat, error)

    // UPDATE
    UpdateTitle(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, title string) (*types.AiChat, error)
    UpdateMessages(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, msgs []types.ChatMessage) error

    // FULL (HARD) DELETE
    FullDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error
}

type aiChatRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewAiChatRepo(db *gorm.DB, baseLog *logger.Logger) AiChatRepo {
    repoLog := baseLog.With("repo", "AiChatRepo")
    return &aiChatRepo{db: db, log: repoLog}
}

func (cr *aiChatRepo) Create(ctx context.Context, tx *gorm.DB, chat *types.AiChat) (*types.AiChat, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if chat.ID == uuid.Nil {
        chat.ID = uuid.New()
    }
    if len(chat.Messages) == 0 {
        if err := chat.EncodeMessages(nil); err != nil {
            return nil, err
        }
    }
    if err := transaction.WithContext(ctx).Create(chat).Error; err != nil {
        cr.log.Error("failed to create ai chat", "error", err)
        return nil, fmt.Errorf("Failed creating ai chat: %w", err)
    }
    return chat, nil
}

func (cr *aiChatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.AiChat, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var chat types.AiChat
    if err := transaction.WithContext(ctx).
        Where("id = ?", chatID).
        First(&chat).Error; err != nil {
        return nil, err
    }
    return &chat, nil
}

func (cr *aiChatRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.AiChat, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var chats []*types.AiChat
    if err := transaction.WithContext(ctx).
        Where("user_id = ? AND organization_id IS NULL", userID).
        Find(&chats).Error; err != nil {
        cr.log.Error("failed to get ai chats by user id", "error", err)
        return nil, fmt.Errorf("Failed fetching ai chats by user id: %w", err)
    }
    return chats, nil
}

func (cr *aiChatRepo) GetByOrganizationID(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) ([]*types.AiChat, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var chats []*types.AiChat
    if err := transaction.WithContext(ctx).
        Where("organization_id = ?", organizationID).
        Find(&chats).Error; err != nil {
        cr.log.Error("failed to get ai chats by organization id", "error", err)
        return nil, fmt.Errorf("Failed fetching ai chats by organization id: %w", err)
    }
    return chats, nil
}

func (cr *aiChatRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, title string) (*types.AiChat, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if err := transaction.WithContext(ctx).
        Model(&types.AiChat{}).
        Where("id = ?", chatID).
        Update("title", title).Error; err != nil {
        cr.log.Error("failed to update ai chat title", "error", err)
        return nil, fmt.Errorf("Failed updating ai chat title: %w", err)
    }
    return cr.GetByID(ctx, transaction, chatID)
}

func (cr *aiChatRepo) UpdateMessages(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, msgs []types.ChatMessage) error {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var chat types.AiChat
    if err := chat.EncodeMessages(msgs); err != nil {
        return err
    }
    if err := transaction.WithContext(ctx).
        Model(&types.AiChat{}).
        Where("id = ?", chatID).
        Update("messages", chat.Messages).Error; err != nil {
        cr.log.Error("failed to update ai chat messages", "error", err)
        return fmt.Errorf("Failed updating ai chat messages: %w", err)
    }
    return nil
}

func (cr *aiChatRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if err := transaction.WithContext(ctx).
        Unscoped().
        Where("id = ?", chatID).
        Delete(&types.AiChat{}).Error; err != nil {
        cr.log.Error("failed to delete ai chat", "error", err)
        return fmt.Errorf("Failed deleting ai chat: %w", err)
    }
    return nil
}
