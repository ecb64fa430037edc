package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/response"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audits *services.AuditService
	users  *services.UserService
}

func NewAuditHandler(audits *services.AuditService, users *services.UserService) *AuditHandler {
	return &AuditHandler{audits: audits, users: users}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	user, err := currentUser(c, h.users)
	if err != nil {
		response.Error(c, err)
		return
	}
	if user == nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	if !user.IsAdmin {
		response.Error(c, errors.ErrForbidden)
		return
	}

	opts := services.AuditListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
		Filters: services.AuditFilters{
			UserID: c.Query("user_id"),
			Action: c.Query("action"),
			Result: c.Query("result"),
		},
	}

	if since, ok := parseTimeQuery(c, "since"); !ok {
		return
	} else if since != nil {
		opts.Filters.Since = since
	}
	if until, ok := parseTimeQuery(c, "until"); !ok {
		return
	} else if until != nil {
		opts.Filters.Until = until
	}

	entries, total, err := h.audits.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	totalPages := int(total) / perPage
	if int(total)%perPage != 0 {
		totalPages++
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"entries": auditPayloads(entries)}, &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: totalPages,
	})
}

// parseTimeQuery reads an optional RFC 3339 timestamp from the query string.
// It writes a bad request response and returns ok=false when the value is
// present but malformed.
func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, true
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		response.Error(c, errors.NewBadRequest(key+" must be an RFC 3339 timestamp"))
		return nil, false
	}
	return &parsed, true
}
