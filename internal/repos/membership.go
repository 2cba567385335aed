package repos

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/browsepilot-org/browsepilot-backend/internal/logger"
    "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type MembershipRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, memberships []*types.Membership) ([]*types.Membership, error)

    // READ
    GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Membership, error)
    IsMember(ctx context.Context, tx *gorm.DB, userID, organizationID uuid.UUID) (bool, error)
}

type membershipRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewMembershipRepo(db *gorm.DB, baseLog *logger.Logger) MembershipRepo {
    repoLog := baseLog.With("repo", "MembershipRepo")
    return &membershipRepo{db: db, log: repoLog}
}

func (mr *membershipRepo) Create(ctx context.Context, tx *gorm.DB, memberships []*types.Membership) ([]*types.Membership, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    if len(memberships) == 0 {
        return []*types.Membership{}, nil
    }
    for _, m := range memberships {
        if m.ID == uuid.Nil {
            m.ID = uuid.New()
        }
    }
    if err := transaction.WithContext(ctx).Create(&memberships).Error; err != nil {
        mr.log.Error("failed to create memberships", "error", err)
        return nil, fmt.Errorf("Failed creating memberships: %w", err)
    }
    return memberships, nil
}

func (mr *membershipRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Membership, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    var memberships []*types.Membership
    if err := transaction.WithContext(ctx).
        Where("user_id IN ?", userIDs).
        Find(&memberships).Error; err != nil {
        mr.log.Error("failed to get memberships by user ids", "error", err)
        return nil, fmt.Errorf("Failed fetching memberships by user ids: %w", err)
    }
    return memberships, nil
}

func (mr *membershipRepo) IsMember(ctx context.Context, tx *gorm.DB, userID, organizationID uuid.UUID) (bool, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.Membership{}).
        Where("user_id = ? AND organization_id = ?", userID, organizationID).
        Count(&count).Error; err != nil {
        mr.log.Error("failed to check membership", "error", err)
        return false, fmt.Errorf("Failed checking membership: %w", err)
    }
    return count > 0, nil
}
