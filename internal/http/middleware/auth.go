// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Every API route sits
// behind Auth(): the Authorization header must carry a JWT issued by the
// platform's identity service, and a verified token puts the numeric user
// id and role into the Gin context for handlers to consume via UserID()
// and RoleOf().
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aulalibre/go-aula-backend/internal/auth"
	"github.com/aulalibre/go-aula-backend/internal/domain"
)

const (
	// userIDKey is the Gin context key holding the authenticated user id.
	userIDKey = "userID"
	// userRoleKey is the Gin context key holding the authenticated role.
	userRoleKey = "userRole"
)

// TokenVerifier validates a bearer token and returns the identity it
// asserts. Implemented by auth.Verifier.
type TokenVerifier interface {
	VerifyToken(token string) (auth.Identity, error)
}

// Auth returns a middleware that requires a valid "Authorization: Bearer"
// token on every request it guards. Missing, malformed, expired, or
// otherwise invalid tokens abort with 401 and the standard error envelope;
// nothing downstream runs.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		id, err := v.VerifyToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token expired"
			}
			unauthorized(c, msg)
			return
		}

		c.Set(userIDKey, id.UserID)
		c.Set(userRoleKey, id.Role)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Auth. The second return
// is false when the request is unauthenticated.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// RoleOf returns the authenticated role set by Auth.
func RoleOf(c *gin.Context) (domain.Role, bool) {
	v, ok := c.Get(userRoleKey)
	if !ok {
		return "", false
	}
	r, ok := v.(domain.Role)
	return r, ok
}

// bearerToken extracts the token from an Authorization header value. The
// scheme comparison is case-insensitive per RFC 7235.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
