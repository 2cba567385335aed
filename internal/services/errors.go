package services

import (
  "errors"
)

// Sentinel errors shared by the service layer. Transport matches with
// errors.Is and maps them onto HTTP statuses.
var (
  ErrChatNotFound       = errors.New("chat not found")
  ErrForbidden          = errors.New("forbidden")
  ErrValidation         = errors.New("invalid request")
  ErrCompletionUpstream = errors.New("completion provider error")
)
