package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pwasik/parley/internal/auth"
)

// Context keys for claims stashed in gin.Context. Constants so a typo
// in a handler is a compile error, not a silent nil.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
	ContextKeyIsStaff  = "is_staff"
)

// AuthMiddleware validates the bearer token and stores its claims in the
// request context. Runs before every protected handler; an invalid or
// missing token aborts the chain with 401 and the handler never runs.
//
// The WebSocket route also accepts the token as a ?token= query
// parameter, because browser WebSocket clients cannot set an
// Authorization header on the upgrade request.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization token",
			})
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyIsStaff, claims.IsStaff)

		c.Next()
	}
}

// StaffOnly gates the staff-only endpoints (user directory, hard
// deletes). Must run after AuthMiddleware.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsStaff(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "staff capability required",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Typed getters so handlers don't repeat the assertion dance. A missing
// key yields the zero value, which fails any downstream check safely.

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetUsername(c *gin.Context) string {
	val, exists := c.Get(ContextKeyUsername)
	if !exists {
		return ""
	}
	name, ok := val.(string)
	if !ok {
		return ""
	}
	return name
}

func IsStaff(c *gin.Context) bool {
	val, exists := c.Get(ContextKeyIsStaff)
	if !exists {
		return false
	}
	staff, ok := val.(bool)
	if !ok {
		return false
	}
	return staff
}
