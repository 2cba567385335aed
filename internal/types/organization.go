package types

import (
  "time"

  "gorm.io/gorm"
  "github.com/google/uuid"
)

type Organization struct {
  gorm.Model
  ID                  uuid.UUID                 `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

  Name                string                    `gorm:"not null;column:name" json:"name"`
  Memberships         []*Membership             `gorm:"foreignKey:OrganizationID" json:"memberships,omitempty"`

  CreatedAt           time.Time                 `gorm:"not null;default:now()" json:"createdAt"`
  UpdatedAt           time.Time                 `gorm:"not null;default:now()" json:"updatedAt"`
}

func (Organization) TableName() string {
  return "organization"
}
