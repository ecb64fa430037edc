package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/response"
)

// UserHandler serves public profiles and profile management.
type UserHandler struct {
	users *services.UserService
	talks *services.TalkService
}

func NewUserHandler(users *services.UserService, talks *services.TalkService) *UserHandler {
	return &UserHandler{users: users, talks: talks}
}

// GET /api/users/:username
func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := requestContext(c)

	user, err := h.users.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}

	talks, err := h.talks.ListByAuthor(ctx, user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":  userPayload(user),
		"talks": talkPayloads(talks),
	})
}

type updateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=64"`
	Location *string `json:"location" validate:"omitempty,max=64"`
	Bio      *string `json:"bio"`
}

// PATCH /api/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.users.UpdateProfile(requestContext(c), user.ID, services.UpdateProfileInput{
		Name:     req.Name,
		Location: req.Location,
		Bio:      req.Bio,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": privateUserPayload(updated)})
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// POST /api/profile/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.ChangePassword(requestContext(c), user.ID, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}
