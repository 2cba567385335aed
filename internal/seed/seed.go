package seed

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/browsepilot-org/browsepilot-backend/internal/logger"
	"github.com/browsepilot-org/browsepilot-backend/internal/repos"
	"github.com/browsepilot-org/browsepilot-backend/internal/types"
	"github.com/browsepilot-org/browsepilot-backend/internal/utils"
)

const (
	demoEmail            = "demo@browsepilot.dev"
	demoPassword         = "password"
	demoOrganizationName = "Browsepilot Demo"
)

// SeedDevData provisions a demo user, organization and membership so a
// fresh database is usable immediately. It is idempotent and only runs
// when SEED_DEV_DATA is enabled.
func SeedDevData(
	db             *gorm.DB,
	log            *logger.Logger,
	userRepo       repos.UserRepo,
	orgRepo        repos.OrganizationRepo,
	membershipRepo repos.MembershipRepo,
) error {
	ctx := context.Background()
	seedLog := log.With("component", "Seed")

	exists, err := userRepo.EmailExists(ctx, nil, demoEmail)
	if err != nil {
		return fmt.Errorf("failed to check demo user existence: %w", err)
	}
	if exists {
		seedLog.Info("Demo data already present, skipping seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user := &types.User{
			Email:     demoEmail,
			Password:  demoPassword,
			FirstName: "Demo",
			LastName:  "User",
		}
		if err := utils.HashPassword(ctx, seedLog, user); err != nil {
			return err
		}
		createdUsers, err := userRepo.Create(ctx, tx, []*types.User{user})
		if err != nil {
			return fmt.Errorf("failed to create demo user: %w", err)
		}

		createdOrgs, err := orgRepo.Create(ctx, tx, []*types.Organization{{Name: demoOrganizationName}})
		if err != nil {
			return fmt.Errorf("failed to create demo organization: %w", err)
		}

		membership := &types.Membership{
			UserID:         createdUsers[0].ID,
			OrganizationID: createdOrgs[0].ID,
			Role:           "owner",
		}
		if _, err := membershipRepo.Create(ctx, tx, []*types.Membership{membership}); err != nil {
			return fmt.Errorf("failed to create demo membership: %w", err)
		}

		seedLog.Info("Seeded demo data", "email", demoEmail, "organization", demoOrganizationName)
		return nil
	})
}
