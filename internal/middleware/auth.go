package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/healtrip/healtrip-api/internal/utils"
)

const identityKey = "identity"

// Auth verifies the bearer token issued by the auth provider and stores the
// caller's identity in the gin context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.Fail(c, utils.Unauthorized("Authorization header required"))
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		id, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.Fail(c, utils.Unauthorized("Invalid token"))
			return
		}

		c.Set(identityKey, *id)
		c.Next()
	}
}

// IdentityFrom returns the identity set by Auth.
func IdentityFrom(c *gin.Context) (utils.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return utils.Identity{}, false
	}
	id, ok := v.(utils.Identity)
	return id, ok
}

// ServiceToken guards internal callbacks with a shared X-Service-Token.
// With no token configured every call is rejected.
func ServiceToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("X-Service-Token"))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			utils.Fail(c, utils.Unauthorized("invalid service token"))
			return
		}
		c.Next()
	}
}
