package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
)

// HeaderActor carries the caller's actor id, resolved by the upstream
// authentication layer.
const HeaderActor = "X-Actor-ID"

// AuthRequired resolves the authenticated actor and stores it in the
// request context for the scoped query layer.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActor))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.directorySvc.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, directorydomain.ErrNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// RequireRole gates a route group to the listed roles. It assumes
// AuthRequired already ran.
func RequireRole(roles ...directorydomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorctx.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}
