package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/models"
	appErrors "github.com/uniplan/enrollment-api/pkg/errors"
	"github.com/uniplan/enrollment-api/pkg/response"
)

// RBAC restricts a route to the given roles.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		roles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*TokenClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, allowed := roles[claims.Role]; !allowed {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
