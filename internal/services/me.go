package services

import (
  "context"
  "fmt"

  "gorm.io/gorm"
  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
  "github.com/browsepilot-org/browsepilot-backend/internal/types"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
)

type MeService interface {
  GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error)
  GetMyOrganizations(ctx context.Context, tx *gorm.DB) ([]*types.Organization, error)
}

type meService struct {
  db              *gorm.DB
  log             *logger.Logger
  userRepo        repos.UserRepo
  organizationRepo repos.OrganizationRepo
  membershipRepo  repos.MembershipRepo
}

func NewMeService(
  db              *gorm.DB,
  log             *logger.Logger,
  userRepo        repos.UserRepo,
  organizationRepo repos.OrganizationRepo,
  membershipRepo  repos.MembershipRepo,
) MeService {
  serviceLog := log.With("service", "MeService")
  return &meService{
    db:               db,
    log:              serviceLog,
    userRepo:         userRepo,
    organizationRepo: organizationRepo,
    membershipRepo:   membershipRepo,
  }
}

func (ms *meService) GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    ms.log.Warn("Request Data is not set in context.")
    return nil, fmt.Errorf("Request Data is not set in context.")
  }
  users, err := ms.userRepo.GetByIDs(ctx, tx, []uuid.UUID{rd.UserID})
  if err != nil {
    ms.log.Error("Failed to fetch current user", "userID", rd.UserID, "error", err)
    return nil, err
  }
  if len(users) == 0 {
    return nil, fmt.Errorf("user not found: %s", rd.UserID)
  }
  return users[0], nil
}

func (ms *meService) GetMyOrganizations(ctx context.Context, tx *gorm.DB) ([]*types.Organization, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    ms.log.Warn("Request Data is not set in context.")
    return nil, fmt.Errorf("Request Data is not set in context.")
  }

  //1) Memberships first, then the organizations they point at.
  memberships, err := ms.membershipRepo.GetByUserIDs(ctx, tx, []uuid.UUID{rd.UserID})
  if err != nil {
    ms.log.Error("Failed to fetch memberships", "userID", rd.UserID, "error", err)
    return nil, err
  }
  if len(memberships) == 0 {
    return []*types.Organization{}, nil
  }
  orgIDs := make([]uuid.UUID, 0, len(memberships))
  for _, m := range memberships {
    orgIDs = append(orgIDs, m.OrganizationID)
  }
  organizations, err := ms.organizationRepo.GetByIDs(ctx, tx, orgIDs)
  if err != nil {
    ms.log.Error("Failed to fetch organizations", "userID", rd.UserID, "error", err)
    return nil, err
  }
  return organizations, nil
}
