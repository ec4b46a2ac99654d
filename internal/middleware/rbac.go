package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/response"
)

// RequireRoles enforces role-based access control for routes. It assumes the
// JWT middleware already ran.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[models.UserRole(claims.Role)]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
