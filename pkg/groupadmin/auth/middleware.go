package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
)

const (
	// ContextKeyUserid is the key for the caller's userid in gin context
	ContextKeyUserid = "userid"
	// ContextKeyAuthority is the key for the caller's authority in gin context
	ContextKeyAuthority = "authority"
	// ContextKeyAdmin is the key for the admin flag in gin context
	ContextKeyAdmin = "admin"
)

// AuthMiddleware validates JWT tokens and sets caller info in context
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := ValidateToken(secret, parts[1])
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyUserid, claims.Userid)
		c.Set(ContextKeyAuthority, claims.Authority)
		c.Set(ContextKeyAdmin, claims.Admin)

		c.Next()
	}
}

// RequireAdmin middleware checks that the caller is an admin
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, exists := c.Get(ContextKeyAdmin)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if isAdmin, _ := admin.(bool); !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserid returns the caller's userid from the gin context
func GetUserid(c *gin.Context) (string, bool) {
	userid := c.GetString(ContextKeyUserid)
	return userid, userid != ""
}

// GetAuthority returns the caller's authority from the gin context
func GetAuthority(c *gin.Context) (string, bool) {
	authority := c.GetString(ContextKeyAuthority)
	return authority, authority != ""
}
