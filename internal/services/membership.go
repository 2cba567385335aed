package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
  "github.com/browsepilot-org/browsepilot-backend/internal/requestdata"
)

type MembershipService interface {
  VerifyOrganizationMembership(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) error
}

type membershipService struct {
  db              *gorm.DB
  log             *logger.Logger
  membershipRepo  repos.MembershipRepo
}

func NewMembershipService(db *gorm.DB, log *logger.Logger, membershipRepo repos.MembershipRepo) MembershipService {
  serviceLog := log.With("service", "MembershipService")
  return &membershipService{db: db, log: serviceLog, membershipRepo: membershipRepo}
}

// VerifyOrganizationMembership confirms the calling user belongs to the
// given organization. Non-membership is ErrForbidden; the caller decides
// what that means for the operation at hand.
func (ms *membershipService) VerifyOrganizationMembership(ctx context.Context, tx *gorm.DB, organizationID uuid.UUID) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    ms.log.Warn("Request Data is not set in context.")
    return fmt.Errorf("Request Data is not set in context.")
  }
  isMember, err := ms.membershipRepo.IsMember(ctx, tx, rd.UserID, organizationID)
  if err != nil {
    ms.log.Warn("Failed to check organization membership", "error", err)
    return err
  }
  if !isMember {
    ms.log.Warn("User is not a member of organization", "userID", rd.UserID, "organizationID", organizationID)
    return fmt.Errorf("%w: not a member of this organization", ErrForbidden)
  }
  return nil
}
