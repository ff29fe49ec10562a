package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/uniplan/enrollment-api/internal/middleware"
)

func claimsFromContext(c *gin.Context) *middleware.TokenClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*middleware.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
