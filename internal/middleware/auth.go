package middleware

import (
	"net/http"
	"strings"

	"fundi/config"
	"fundi/internal/auth"

	"github.com/gin-gonic/gin"
)

const claimsKey = "auth_claims"

// BearerToken returns the token from an "Authorization: Bearer" header, or ""
// when the header is absent or malformed.
func BearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthRequired rejects requests without a valid access token and stores the
// token's claims for GetUserID and GetRole.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// GetUserID returns the caller's id, or 0 outside AuthRequired.
func GetUserID(c *gin.Context) uint {
	if claims := claimsFrom(c); claims != nil {
		return claims.UserID
	}
	return 0
}

func GetRole(c *gin.Context) string {
	if claims := claimsFrom(c); claims != nil {
		return claims.Role
	}
	return ""
}
