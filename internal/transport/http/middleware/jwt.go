package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"knowledgehub/internal/cache"
	"knowledgehub/internal/model"
	"knowledgehub/internal/pkg/jwtutil"
	"knowledgehub/internal/transport/http/response"
)

const (
	ContextTokenIDKey       = "token_id"
	ContextUserIDKey        = "user_id"
	ContextUsernameKey      = "username"
	ContextRoleKey          = "role"
	ContextOrgTagsKey       = "org_tags"
	ContextPrimaryOrgTagKey = "primary_org_tag"
)

// AuthJWT parses and validates the bearer token, then checks it
// against sessionStore so a logged-out or blacklisted token is
// rejected even while its signature and expiry are still otherwise
// valid. Grounded on the teacher's AuthJWT, generalized to also carry
// role and organization-tag claims per manshu's JwtUtils.
func AuthJWT(secret string, sessionStore *cache.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		if sessionStore != nil {
			valid, err := sessionStore.IsTokenValid(c.Request.Context(), claims.TokenID)
			if err != nil {
				response.Error(c, 500, response.CodeInternalServer, "session lookup failed")
				c.Abort()
				return
			}
			if !valid {
				response.Error(c, 401, response.CodeUnauthorized, "session has been revoked")
				c.Abort()
				return
			}
		}

		c.Set(ContextTokenIDKey, claims.TokenID)
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextRoleKey, claims.Role)
		c.Set(ContextOrgTagsKey, claims.OrgTags)
		c.Set(ContextPrimaryOrgTagKey, claims.PrimaryOrgTag)
		c.Next()
	}
}

// RequireAdmin rejects any request whose token role isn't ADMIN. Used
// on top of AuthJWT for the admin surface.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRoleKey)
		if role != model.RoleAdmin {
			response.Error(c, 403, response.CodeForbidden, "admin role required")
			c.Abort()
			return
		}
		c.Next()
	}
}
