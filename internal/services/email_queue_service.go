package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/models"
	apperrors "github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/metrics"
)

// Digest bundles every queued notification for one address so the dispatcher
// can deliver them as a single message.
type Digest struct {
	Name  string
	Email string
	Items []models.PendingEmail
}

// QueueOption customises the EmailQueueService.
type QueueOption func(*EmailQueueService)

// WithQueueBaseURL sets the public base URL used in unsubscribe links.
func WithQueueBaseURL(url string) QueueOption {
	return func(s *EmailQueueService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// EmailQueueService owns the pending email queue: deduplicated enqueue of
// comment notifications and digest assembly for the dispatcher.
type EmailQueueService struct {
	db      *gorm.DB
	tokens  *auth.JWTService
	baseURL string
}

// NewEmailQueueService constructs an EmailQueueService instance.
func NewEmailQueueService(db *gorm.DB, tokens *auth.JWTService, opts ...QueueOption) (*EmailQueueService, error) {
	if db == nil {
		return nil, errors.New("email queue service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("email queue service: token service is required")
	}

	service := &EmailQueueService{db: db, tokens: tokens}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// AlreadyQueued reports whether a notification for (email, talk) is pending.
func (s *EmailQueueService) AlreadyQueued(ctx context.Context, email, talkID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.PendingEmail{}).
		Where("email = ? AND talk_id = ?", normaliseEmail(email), talkID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("email queue service: count pending: %w", err)
	}
	return count > 0, nil
}

// QueueCommentNotification enqueues a comment notification for one recipient.
// A pending row for the same (email, talk) pair makes this a no-op.
func (s *EmailQueueService) QueueCommentNotification(ctx context.Context, talk *models.Talk, name, email string) error {
	ctx = ensureContext(ctx)

	if talk == nil {
		return errors.New("email queue service: talk is required")
	}
	email = normaliseEmail(email)
	if email == "" {
		return apperrors.NewBadRequest("recipient email is required")
	}

	queued, err := s.AlreadyQueued(ctx, email, talk.ID)
	if err != nil {
		return err
	}
	if queued {
		return nil
	}

	unsubscribe, err := s.unsubscribeLink(talk.ID, email)
	if err != nil {
		return fmt.Errorf("email queue service: unsubscribe link: %w", err)
	}

	pending := &models.PendingEmail{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Subject:  fmt.Sprintf("[talks] New comment on %q", talk.Title),
		BodyText: s.notificationText(talk, unsubscribe),
		BodyHTML: s.notificationHTML(talk, unsubscribe),
		TalkID:   talk.ID,
	}

	if err := s.db.WithContext(ctx).Create(pending).Error; err != nil {
		return fmt.Errorf("email queue service: enqueue: %w", err)
	}

	metrics.EmailsQueued.Inc()
	return nil
}

// Remove deletes every queued notification for an address.
func (s *EmailQueueService) Remove(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return apperrors.NewBadRequest("email is required")
	}

	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.PendingEmail{}).Error; err != nil {
		return fmt.Errorf("email queue service: remove pending: %w", err)
	}
	return nil
}

// NextDigest returns all queued rows for the address with the oldest pending
// notification, or nil when the queue is empty.
func (s *EmailQueueService) NextDigest(ctx context.Context) (*Digest, error) {
	ctx = ensureContext(ctx)

	var oldest models.PendingEmail
	err := s.db.WithContext(ctx).
		Order("timestamp ASC").
		First(&oldest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("email queue service: peek queue: %w", err)
	}

	var items []models.PendingEmail
	if err := s.db.WithContext(ctx).
		Where("email = ?", oldest.Email).
		Order("timestamp ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("email queue service: collect digest: %w", err)
	}

	return &Digest{
		Name:  oldest.Name,
		Email: oldest.Email,
		Items: items,
	}, nil
}

// PendingCount reports the total number of queued rows.
func (s *EmailQueueService) PendingCount(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.PendingEmail{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("email queue service: count queue: %w", err)
	}
	return count, nil
}

func (s *EmailQueueService) unsubscribeLink(talkID, email string) (string, error) {
	token, err := s.tokens.GenerateUnsubscribeToken(talkID, email)
	if err != nil {
		return "", err
	}
	if s.baseURL == "" {
		return token, nil
	}
	return fmt.Sprintf("%s/api/unsubscribe?token=%s", s.baseURL, token), nil
}

func (s *EmailQueueService) notificationText(talk *models.Talk, unsubscribe string) string {
	return fmt.Sprintf(
		"There is a new comment on the talk %q.\n\nStop receiving notifications for this talk:\n%s\n",
		talk.Title, unsubscribe)
}

func (s *EmailQueueService) notificationHTML(talk *models.Talk, unsubscribe string) string {
	return fmt.Sprintf(
		"<p>There is a new comment on the talk <b>%s</b>.</p><p><a href=%q>Stop receiving notifications for this talk</a>.</p>",
		html.EscapeString(talk.Title), unsubscribe)
}
