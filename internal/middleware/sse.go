package middleware

import (
  "github.com/gin-gonic/gin"
  "github.com/browsepilot-org/browsepilot-backend/internal/errordata"
)

// AttachRequestContext seeds the per-request error stash used by
// streaming handlers to surface failures that happen after the
// response body has started.
func AttachRequestContext() gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx := c.Request.Context()
    ctx = errordata.WithErrorData(ctx)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}
