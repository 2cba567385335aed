package repos

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/browsepilot-org/browsepilot-backend/internal/logger"
    "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type UserRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)

    // READ
    GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
    GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error)
    EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error)
}

type userRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
    repoLog := baseLog.With("repo", "UserRepo")
    return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    if len(users) == 0 {
        return []*types.User{}, nil
    }
    for _, u := range users {
        if u.ID == uuid.Nil {
            u.ID = uuid.New()
        }
    }
    if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
        ur.log.Error("failed to create users", "error", err)
        return nil, fmt.Errorf("Failed creating users: %w", err)
    }
    return users, nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var users []*types.User
    if err := transaction.WithContext(ctx).
        Where("id IN ?", userIDs).
        Find(&users).Error; err != nil {
        ur.log.Error("failed to get users by ids", "error", err)
        return nil, fmt.Errorf("Failed fetching users by ids: %w", err)
    }
    return users, nil
}

func (ur *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var users []*types.User
    if err := transaction.WithContext(ctx).
        Where("email IN ?", userEmails).
        Find(&users).Error; err != nil {
        ur.log.Error("failed to get users by emails", "error", err)
        return nil, fmt.Errorf("Failed fetching users by emails: %w", err)
    }
    return users, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.User{}).
        Where("email = ?", userEmail).
        Count(&count).Error; err != nil {
        ur.log.Error("failed to check email existence", "error", err)
        return false, fmt.Errorf("Failed checking email existence: %w", err)
    }
    return count > 0, nil
}
