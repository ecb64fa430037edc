package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/response"
)

// TalkHandler serves the talk CRUD endpoints.
type TalkHandler struct {
	talks *services.TalkService
	users *services.UserService
}

func NewTalkHandler(talks *services.TalkService, users *services.UserService) *TalkHandler {
	return &TalkHandler{talks: talks, users: users}
}

type talkRequest struct {
	Title       string     `json:"title" validate:"required,max=128"`
	Description string     `json:"description"`
	Slides      string     `json:"slides"`
	Video       string     `json:"video"`
	Venue       string     `json:"venue" validate:"max=128"`
	VenueURL    string     `json:"venue_url" validate:"omitempty,url,max=128"`
	Date        *time.Time `json:"date"`
}

func (r talkRequest) toInput() services.TalkInput {
	return services.TalkInput{
		Title:       r.Title,
		Description: r.Description,
		Slides:      r.Slides,
		Video:       r.Video,
		Venue:       r.Venue,
		VenueURL:    r.VenueURL,
		Date:        r.Date,
	}
}

// GET /api/talks
func (h *TalkHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	perPage := parseIntQuery(c, "per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	talks, total, err := h.talks.List(requestContext(c), services.ListTalksOptions{
		Page:     page,
		PageSize: perPage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"talks": talkPayloads(talks)}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// GET /api/talks/:id
func (h *TalkHandler) Get(c *gin.Context) {
	talk, err := h.talks.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"talk": talkPayload(talk)})
}

// POST /api/talks
func (h *TalkHandler) Create(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req talkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	talk, err := h.talks.Create(requestContext(c), user.ID, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"talk": talkPayload(talk)})
}

// PATCH /api/talks/:id
func (h *TalkHandler) Update(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req talkRequest
	if !bindAndValidate(c, &req) {
		return
	}

	talk, err := h.talks.Update(requestContext(c), c.Param("id"), user, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"talk": talkPayload(talk)})
}

// DELETE /api/talks/:id
func (h *TalkHandler) Delete(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.talks.Delete(requestContext(c), c.Param("id"), user); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
