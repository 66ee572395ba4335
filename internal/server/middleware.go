package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallhaul/tradeledger/internal/auditctx"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
)

// RequestIdentityMiddleware tags every request with an ID and threads the
// caller identity into the context, where the audit trail picks both up.
func RequestIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		ctx := auditctx.WithRequestID(c.Request.Context(), requestID)
		if userID := strings.TrimSpace(c.GetHeader(headerUserID)); userID != "" {
			ctx = auditctx.WithUserID(ctx, userID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
