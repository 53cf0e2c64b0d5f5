package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/inkwellhq/inkwell-go/internal/infrastructure/security"
	"github.com/inkwellhq/inkwell-go/pkg/config"
)

// StreamAuth validates stream tokens and installs the resulting claims.
// With no token secret configured, streams are open and every topic is
// observable; that is the local development posture.
func StreamAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.StreamTokenSecret == "" {
			c.Set("streamClaims", &security.StreamClaims{ClientID: ulid.Make().String()})
			c.Next()
			return
		}

		token := c.Query("token")
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "stream token required"})
			return
		}

		claims, err := security.StreamClaimsFromToken(token, config.StreamTokenSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid stream token"})
			return
		}

		c.Set("streamClaims", claims)
		c.Next()
	}
}
