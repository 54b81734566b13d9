package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mwang-dev/friendfeed/auth"
)

// IdentityKey is the gin context key the verified caller identity is stored
// under.
const IdentityKey = "identity"

// BearerAuth fetches the bearer token from the Authorization header,
// verifies it against the identity provider and stores the resulting
// identity in the request context. It aborts with 401 on token not provided
// or token is invalid (wrong token or expired).
func BearerAuth(provider auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized. No valid token found.",
			})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		identity, err := provider.VerifyToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized. Invalid token or other error.",
			})
			c.Abort()
			return
		}

		c.Set(IdentityKey, identity)

		// before request
		c.Next()
	}
}

// IdentityFrom returns the verified identity set by BearerAuth, nil when
// the route isn't behind the middleware.
func IdentityFrom(c *gin.Context) *auth.Identity {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	identity, ok := val.(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}
