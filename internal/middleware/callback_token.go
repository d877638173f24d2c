package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CallbackToken guards gateway callbacks with a shared secret carried as
// ?token= in the registered callback URL. An empty token disables the check.
func CallbackToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(token)) != 1 {
			log.Warn().Str("component", "mpesa_callback").Str("ip", c.ClientIP()).Msg("callback rejected: bad token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
