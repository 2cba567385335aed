package types

import (
  "time"

  "gorm.io/gorm"
  "github.com/google/uuid"
)

type Membership struct {
  gorm.Model
  ID                  uuid.UUID                 `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID              uuid.UUID                 `gorm:"index;not null;uniqueIndex:idx_membership_user_org" json:"userID"`
  User                *User                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  OrganizationID      uuid.UUID                 `gorm:"index;not null;uniqueIndex:idx_membership_user_org" json:"organizationID"`
  Organization        *Organization             `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`

  Role                string                    `gorm:"column:role;default:'member'" json:"role"`

  CreatedAt           time.Time                 `gorm:"not null;default:now()" json:"createdAt"`
  UpdatedAt           time.Time                 `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Membership) TableName() string {
  return "membership"
}
