package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/middleware"
	"github.com/manuphatak/talks/internal/models"
	"github.com/manuphatak/talks/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser loads the authenticated user, or nil when the request is anonymous.
func currentUser(c *gin.Context, users *services.UserService) (*models.User, error) {
	id := c.GetString(middleware.CtxUserIDKey)
	if id == "" {
		return nil, nil
	}
	return users.GetByID(requestContext(c), id)
}
