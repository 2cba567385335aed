package repos

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/browsepilot-org/browsepilot-backend/internal/logger"
    "github.com/browsepilot-org/browsepilot-backend/internal/types"
)

type OrganizationRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, organizations []*types.Organization) ([]*types.Organization, error)

    // READ
    GetByIDs(ctx context.Context, tx *gorm.DB, organizationIDs []uuid.UUID) ([]*types.Organization, error)
}

type organizationRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
    repoLog := baseLog.With("repo", "OrganizationRepo")
    return &organizationRepo{db: db, log: repoLog}
}

func (or *organizationRepo) Create(ctx context.Context, tx *gorm.DB, organizations []*types.Organization) ([]*types.Organization, error) {
    transaction := tx
    if transaction == nil {
        transaction = or.db
    }
    if len(organizations) == 0 {
        return []*types.Organization{}, nil
    }
    for _, o := range organizations {
        if o.ID == uuid.Nil {
            o.ID = uuid.New()
        }
    }
    if err := transaction.WithContext(ctx).Create(&organizations).Error; err != nil {
        or.log.Error("failed to create organizations", "error", err)
        return nil, fmt.Errorf("Failed creating organizations: %w", err)
    }
    return organizations, nil
}

func (or *organizationRepo) GetByIDs(ctx context.Context, tx *gorm.DB, organizationIDs []uuid.UUID) ([]*types.Organization, error) {
    transaction := tx
    if transaction == nil {
        transaction = or.db
    }
    var organizations []*types.Organization
    if err := transaction.WithContext(ctx).
        Where("id IN ?", organizationIDs).
        Find(&organizations).Error; err != nil {
        or.log.Error("failed to get organizations by ids", "error", err)
        return nil, fmt.Errorf("Failed fetching organizations by ids: %w", err)
    }
    return organizations, nil
}
