package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/manuphatak/talks/internal/models"
)

func userPayload(u *models.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"name":         u.Name,
		"display_name": u.DisplayName(),
		"location":     u.Location,
		"bio":          u.Bio,
		"is_admin":     u.IsAdmin,
		"avatar_url":   u.Gravatar(100, "", ""),
		"member_since": u.MemberSince,
	}
}

// privateUserPayload adds fields only the account owner should see.
func privateUserPayload(u *models.User) gin.H {
	payload := userPayload(u)
	payload["email"] = u.Email
	return payload
}

func talkPayload(t *models.Talk) gin.H {
	payload := gin.H{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"slides":      t.Slides,
		"video":       t.Video,
		"venue":       t.Venue,
		"venue_url":   t.VenueURL,
		"date":        t.Date,
		"author_id":   t.AuthorID,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
	if t.Author != nil {
		payload["author"] = userPayload(t.Author)
	}
	return payload
}

func commentPayload(c *models.Comment) gin.H {
	payload := gin.H{
		"id":        c.ID,
		"body_html": c.BodyHTML,
		"timestamp": c.Timestamp,
		"approved":  c.Approved,
		"talk_id":   c.TalkID,
	}
	if c.Author != nil {
		payload["author_name"] = c.Author.DisplayName()
		payload["author"] = userPayload(c.Author)
	} else {
		payload["author_name"] = c.AuthorName
	}
	return payload
}

func commentPayloads(comments []models.Comment) []gin.H {
	payloads := make([]gin.H, 0, len(comments))
	for i := range comments {
		payloads = append(payloads, commentPayload(&comments[i]))
	}
	return payloads
}

func talkPayloads(talks []models.Talk) []gin.H {
	payloads := make([]gin.H, 0, len(talks))
	for i := range talks {
		payloads = append(payloads, talkPayload(&talks[i]))
	}
	return payloads
}

func auditPayload(entry *models.AuditLog) gin.H {
	return gin.H{
		"id":         entry.ID,
		"user_id":    entry.UserID,
		"username":   entry.Username,
		"action":     entry.Action,
		"resource":   entry.Resource,
		"result":     entry.Result,
		"ip_address": entry.IPAddress,
		"metadata":   entry.Metadata,
		"created_at": entry.CreatedAt,
	}
}

func auditPayloads(entries []models.AuditLog) []gin.H {
	payloads := make([]gin.H, 0, len(entries))
	for i := range entries {
		payloads = append(payloads, auditPayload(&entries[i]))
	}
	return payloads
}
