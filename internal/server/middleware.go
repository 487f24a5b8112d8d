package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rentflow/internal/observability/context"
	"github.com/smallbiznis/rentflow/internal/orgcontext"
	"github.com/smallbiznis/rentflow/pkg/apperr"
)

const (
	HeaderOrg   = "X-Org-ID"
	HeaderActor = "X-Actor-ID"
)

var ErrInvalidOrgHeader = apperr.Validation("invalid_organization", "X-Org-ID must be a valid owner id")

// OwnerContext scopes the request to the owner named in X-Org-ID. Services
// reject requests that reach them without one.
func OwnerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
			orgID, err := snowflake.ParseString(raw)
			if err != nil || orgID <= 0 {
				AbortWithError(c, ErrInvalidOrgHeader)
				return
			}
			ctx = orgcontext.WithOrgID(ctx, orgID)
			ctx = obscontext.WithOrgID(ctx, orgID.String())
		}

		if actor := strings.TrimSpace(c.GetHeader(HeaderActor)); actor != "" {
			ctx = orgcontext.WithActorID(ctx, actor)
			ctx = obscontext.WithActor(ctx, "user", actor)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// EvaluateRateLimit throttles on-demand alert passes per owner.
func (s *Server) EvaluateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.evaluateLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok {
			c.Next()
			return
		}

		res, err := s.evaluateLimiter.Allow(ctx, orgID.String())
		if err != nil {
			s.log.Warn("evaluate rate limit check failed", obsLogFields(c, err)...)
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", retryAfterSeconds(res.RetryAfter))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
