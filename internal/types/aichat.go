package types

import (
  "encoding/json"
  "fmt"
  "time"

  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/google/uuid"
)

const (
  ChatRoleUser      = "user"
  ChatRoleAssistant = "assistant"
  ChatRoleSystem    = "system"
)

// ChatMessage is one turn of a chat transcript. Messages live inside
// their AiChat row as a JSON array and have no identity of their own;
// order within the array is the only ordering signal.
type ChatMessage struct {
  Role        string          `json:"role"`
  Content     string          `json:"content"`
}

// AiChat is owned by exactly one of UserID (personal chat) or
// OrganizationID (shared chat). Ownership is fixed at creation.
type AiChat struct {
  gorm.Model
  ID              uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          *uuid.UUID        `gorm:"index" json:"userID,omitempty"`
  User            *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  OrganizationID  *uuid.UUID        `gorm:"index" json:"organizationID,omitempty"`
  Organization    *Organization     `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`

  Title           string            `gorm:"column:title" json:"title,omitempty"`
  Messages        datatypes.JSON    `gorm:"column:messages;default:'[]'" json:"messages"`

  CreatedAt       time.Time         `gorm:"not null;default:now()" json:"createdAt"`
  UpdatedAt       time.Time         `gorm:"not null;default:now()" json:"updatedAt"`
}

func (AiChat) TableName() string {
  return "ai_chat"
}

func (c *AiChat) DecodeMessages() ([]ChatMessage, error) {
  if len(c.Messages) == 0 {
    return []ChatMessage{}, nil
  }
  var msgs []ChatMessage
  if err := json.Unmarshal(c.Messages, &msgs); err != nil {
    return nil, fmt.Errorf("failed to decode chat messages: %w", err)
  }
  return msgs, nil
}

func (c *AiChat) EncodeMessages(msgs []ChatMessage) error {
  if msgs == nil {
    msgs = []ChatMessage{}
  }
  raw, err := json.Marshal(msgs)
  if err != nil {
    return fmt.Errorf("failed to encode chat messages: %w", err)
  }
  c.Messages = datatypes.JSON(raw)
  return nil
}
