package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth enforces bearer authentication. Session tokens and short-lived API
// tokens are both accepted.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwt)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth populates identity when a valid bearer token is present but
// lets anonymous requests through untouched.
func OptionalAuth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, jwt); ok {
			c.Set(CtxClaimsKey, claims)
			c.Set(CtxUserIDKey, claims.UserID)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, jwt *iauth.JWTService) (*iauth.Claims, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return nil, false
	}

	token := strings.TrimSpace(authz[7:])
	if claims, err := jwt.ValidateSessionToken(token); err == nil {
		return claims, true
	}
	if claims, err := jwt.ValidateAPIToken(token); err == nil {
		return claims, true
	}
	return nil, false
}
