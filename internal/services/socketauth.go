package services

import (
  "context"
  "strings"

  "github.com/google/uuid"

  "github.com/browsepilot-org/browsepilot-backend/internal/logger"
  "github.com/browsepilot-org/browsepilot-backend/internal/repos"
  "github.com/browsepilot-org/browsepilot-backend/internal/socket"
)

type socketAuthService struct {
  log             *logger.Logger
  membershipRepo  repos.MembershipRepo
}

// NewSocketAuthService gates websocket channel subscriptions with the
// same rule as the REST surface: a user may only watch their own
// personal channel or the channel of an organization they belong to.
func NewSocketAuthService(log *logger.Logger, membershipRepo repos.MembershipRepo) socket.ChannelAuthorizer {
  serviceLog := log.With("service", "SocketAuthService")
  return &socketAuthService{log: serviceLog, membershipRepo: membershipRepo}
}

func (sa *socketAuthService) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
  parts := strings.Split(channel, ":")
  if len(parts) != 3 || parts[0] != "aichats" {
    return false, nil
  }
  scopeID, err := uuid.Parse(parts[2])
  if err != nil {
    return false, nil
  }

  switch parts[1] {
  case "user":
    return scopeID == userID, nil
  case "org":
    return sa.membershipRepo.IsMember(ctx, nil, userID, scopeID)
  default:
    return false, nil
  }
}
