package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/response"
)

// CommentHandler serves comment creation, listing, moderation, and unsubscribe.
type CommentHandler struct {
	comments *services.CommentService
	talks    *services.TalkService
	users    *services.UserService
}

func NewCommentHandler(comments *services.CommentService, talks *services.TalkService, users *services.UserService) *CommentHandler {
	return &CommentHandler{comments: comments, talks: talks, users: users}
}

type commentRequest struct {
	Body   string `json:"body" validate:"required"`
	Name   string `json:"name" validate:"max=64"`
	Email  string `json:"email" validate:"omitempty,email,max=64"`
	Notify *bool  `json:"notify"`
}

// POST /api/talks/:id/comments
//
// Signed-in users post as themselves; anonymous visitors must supply a name
// and email and may opt out of follow-up notifications.
func (h *CommentHandler) Create(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req commentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	talkID := c.Param("id")

	if user != nil {
		comment, err := h.comments.CreateForPresenter(requestContext(c), services.PresenterCommentInput{
			TalkID: talkID,
			Author: user,
			Body:   req.Body,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusCreated, gin.H{"comment": commentPayload(comment)})
		return
	}

	notify := true
	if req.Notify != nil {
		notify = *req.Notify
	}

	comment, err := h.comments.CreateForVisitor(requestContext(c), services.VisitorCommentInput{
		TalkID: talkID,
		Name:   req.Name,
		Email:  req.Email,
		Body:   req.Body,
		Notify: notify,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"comment":   commentPayload(comment),
		"moderated": true,
	})
}

// GET /api/talks/:id/comments
//
// The talk's presenter and admins also see comments still held for moderation.
func (h *CommentHandler) ListForTalk(c *gin.Context) {
	ctx := requestContext(c)

	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	talk, err := h.talks.GetByID(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	includeUnapproved := user != nil && (user.IsAdmin || user.ID == talk.AuthorID)

	comments, err := h.comments.ListForTalk(ctx, talk.ID, includeUnapproved)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"comments": commentPayloads(comments)})
}

// GET /api/moderation
func (h *CommentHandler) ModerationQueue(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	admin := strings.EqualFold(c.Query("scope"), "all")

	comments, err := h.comments.ForModeration(requestContext(c), user, admin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"comments": commentPayloads(comments)})
}

// POST /api/comments/:id/approve
func (h *CommentHandler) Approve(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	comment, err := h.comments.Approve(requestContext(c), c.Param("id"), user)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"comment": commentPayload(comment)})
}

// DELETE /api/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.comments.Delete(requestContext(c), c.Param("id"), user); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/unsubscribe
func (h *CommentHandler) Unsubscribe(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, errors.NewBadRequest("token is required"))
		return
	}

	talk, email, err := h.comments.Unsubscribe(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"unsubscribed": true,
		"talk":         gin.H{"id": talk.ID, "title": talk.Title},
		"email":        email,
	})
}
