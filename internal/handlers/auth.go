package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/metrics"
	"github.com/manuphatak/talks/pkg/response"
)

// AuthHandler manages registration, login, and token issuance.
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,username,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"max=64"`
	Location string `json:"location" validate:"max=64"`
	Bio      string `json:"bio"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Location: req.Location,
		Bio:      req.Bio,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": privateUserPayload(user)})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Identifier, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.GenerateSessionToken(user.ID)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  privateUserPayload(user),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": privateUserPayload(user)})
}

// POST /api/tokens
//
// Issues a short-lived token for programmatic access, mirroring the
// session-authenticated token exchange used by API clients.
func (h *AuthHandler) APIToken(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	token, err := h.jwt.GenerateAPIToken(user.ID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.jwt.APITokenTTL().Seconds()),
	})
}
