package handler

import (
	"net/http"
	"strings"

	"github.com/cambiartech/buykoins-be-sub000/internal/models"
	"github.com/cambiartech/buykoins-be-sub000/internal/utils"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "support.identity"

// AuthMiddleware resolves the caller's identity from the bearer token or the
// X-Guest-Token header and stores it in the request context. REST callers
// without any credential are rejected; minting guest tokens happens on
// socket connect, not here.
func AuthMiddleware(resolver *utils.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		guestToken := c.GetHeader("X-Guest-Token")

		if bearer == "" && guestToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credentials required"})
			return
		}

		identity, _, err := resolver.Resolve(c, bearer, guestToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// OperatorOnly gates staff routes. Must run after AuthMiddleware.
func OperatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CallerIdentity(c).IsOperator() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operator access required"})
			return
		}
		c.Next()
	}
}

// CallerIdentity returns the identity stored by AuthMiddleware.
func CallerIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityContextKey); ok {
		if identity, ok := v.(models.Identity); ok {
			return identity
		}
	}
	return models.Identity{}
}
