package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bible_search_server/internal/pkg/jwt"
	"github.com/qs3c/bible_search_server/internal/pkg/response"
	"github.com/qs3c/bible_search_server/internal/service"
)

const (
	UserIDKey  = "userID"
	SubjectKey = "subject"
	EmailKey   = "email"
)

// UserResolver maps a verified identity to the internal user id, creating
// the user on first sight
type UserResolver interface {
	Resolve(ctx context.Context, subject, email string) (int64, error)
}

// Auth requires a valid bearer token
func Auth(verifier jwt.Verifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.AuthError(c, "")
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.AuthError(c, "")
			return
		}

		if err := setIdentity(c, claims, users); err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				response.AuthError(c, "")
				return
			}
			response.ServerError(c, "")
			return
		}

		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous or badly authenticated requests through
func OptionalAuth(verifier jwt.Verifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err == nil {
			if err := setIdentity(c, claims, users); err != nil && !errors.Is(err, service.ErrUnauthorized) {
				response.ServerError(c, "")
				return
			}
		}

		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *jwt.Claims, users UserResolver) error {
	userID, err := users.Resolve(c.Request.Context(), claims.Subject, claims.Email)
	if err != nil {
		return err
	}
	c.Set(UserIDKey, userID)
	c.Set(SubjectKey, claims.Subject)
	c.Set(EmailKey, claims.Email)
	return nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", false
	}
	return token, true
}

// GetUserID returns the authenticated caller's internal id
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetIdentity returns the verified subject and email
func GetIdentity(c *gin.Context) (subject, email string) {
	return c.GetString(SubjectKey), c.GetString(EmailKey)
}
