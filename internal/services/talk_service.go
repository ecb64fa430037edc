package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/models"
	apperrors "github.com/manuphatak/talks/pkg/errors"
)

// ErrTalkNotFound indicates the requested talk does not exist.
var ErrTalkNotFound = apperrors.New("TALK_NOT_FOUND", "Talk not found", http.StatusNotFound)

// TalkInput describes the fields accepted when creating or updating a talk.
type TalkInput struct {
	Title       string
	Description string
	Slides      string
	Video       string
	Venue       string
	VenueURL    string
	Date        *time.Time
}

// ListTalksOptions controls pagination for talk listing.
type ListTalksOptions struct {
	Page     int
	PageSize int
}

// TalkService manages the talk CRUD lifecycle and ownership rules.
type TalkService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewTalkService constructs a TalkService instance.
func NewTalkService(db *gorm.DB, auditService *AuditService) (*TalkService, error) {
	if db == nil {
		return nil, errors.New("talk service: db is required")
	}
	return &TalkService{
		db:           db,
		auditService: auditService,
	}, nil
}

// Create stores a new talk owned by the given author.
func (s *TalkService) Create(ctx context.Context, authorID string, input TalkInput) (*models.Talk, error) {
	ctx = ensureContext(ctx)

	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, apperrors.NewBadRequest("author is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	talk := &models.Talk{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Slides:      input.Slides,
		Video:       input.Video,
		Venue:       strings.TrimSpace(input.Venue),
		VenueURL:    strings.TrimSpace(input.VenueURL),
		Date:        input.Date,
		AuthorID:    authorID,
	}

	if err := s.db.WithContext(ctx).Create(talk).Error; err != nil {
		return nil, fmt.Errorf("talk service: create talk: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &authorID,
		Action:   "talk.create",
		Resource: talk.ID,
		Result:   "success",
		Metadata: map[string]any{"title": talk.Title},
	})

	return talk, nil
}

// GetByID loads a talk including its author.
func (s *TalkService) GetByID(ctx context.Context, id string) (*models.Talk, error) {
	ctx = ensureContext(ctx)

	var talk models.Talk
	err := s.db.WithContext(ctx).Preload("Author").First(&talk, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTalkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("talk service: get talk: %w", err)
	}
	return &talk, nil
}

// List retrieves talks ordered by date descending with pagination.
func (s *TalkService) List(ctx context.Context, opts ListTalksOptions) ([]models.Talk, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Talk{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("talk service: count talks: %w", err)
	}

	var talks []models.Talk
	if err := query.
		Order("date DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("Author").
		Find(&talks).Error; err != nil {
		return nil, 0, fmt.Errorf("talk service: list talks: %w", err)
	}

	return talks, total, nil
}

// ListByAuthor retrieves all talks by one author, newest first.
func (s *TalkService) ListByAuthor(ctx context.Context, authorID string) ([]models.Talk, error) {
	ctx = ensureContext(ctx)

	var talks []models.Talk
	if err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("date DESC").
		Find(&talks).Error; err != nil {
		return nil, fmt.Errorf("talk service: list talks by author: %w", err)
	}
	return talks, nil
}

// Update persists mutable attributes when the actor owns the talk or is an admin.
func (s *TalkService) Update(ctx context.Context, id string, actor *models.User, input TalkInput) (*models.Talk, error) {
	ctx = ensureContext(ctx)

	talk, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorise(talk, actor); err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	updates := map[string]any{
		"title":       strings.TrimSpace(input.Title),
		"description": input.Description,
		"slides":      input.Slides,
		"video":       input.Video,
		"venue":       strings.TrimSpace(input.Venue),
		"venue_url":   strings.TrimSpace(input.VenueURL),
		"date":        input.Date,
	}

	if err := s.db.WithContext(ctx).Model(talk).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("talk service: update talk: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &actor.ID,
		Username: actor.Username,
		Action:   "talk.update",
		Resource: talk.ID,
		Result:   "success",
	})

	return s.GetByID(ctx, id)
}

// Delete removes a talk together with its comments and queued notifications.
func (s *TalkService) Delete(ctx context.Context, id string, actor *models.User) error {
	ctx = ensureContext(ctx)

	talk, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorise(talk, actor); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("talk_id = ?", talk.ID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		if err := tx.Where("talk_id = ?", talk.ID).Delete(&models.PendingEmail{}).Error; err != nil {
			return fmt.Errorf("delete pending emails: %w", err)
		}
		if err := tx.Delete(&models.Talk{}, "id = ?", talk.ID).Error; err != nil {
			return fmt.Errorf("delete talk: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("talk service: delete talk: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &actor.ID,
		Username: actor.Username,
		Action:   "talk.delete",
		Resource: talk.ID,
		Result:   "success",
		Metadata: map[string]any{"title": talk.Title},
	})

	return nil
}

func (s *TalkService) authorise(talk *models.Talk, actor *models.User) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.IsAdmin || actor.ID == talk.AuthorID {
		return nil
	}
	return apperrors.ErrForbidden
}
