package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/models"
	apperrors "github.com/manuphatak/talks/pkg/errors"
	"github.com/manuphatak/talks/pkg/metrics"
)

// ErrCommentNotFound indicates the requested comment does not exist.
var ErrCommentNotFound = apperrors.New("COMMENT_NOT_FOUND", "Comment not found", http.StatusNotFound)

// PresenterCommentInput describes a comment posted by a signed-in user.
type PresenterCommentInput struct {
	TalkID string
	Author *models.User
	Body   string
}

// VisitorCommentInput describes a comment posted by an anonymous visitor.
type VisitorCommentInput struct {
	TalkID string
	Name   string
	Email  string
	Body   string
	Notify bool
}

// CommentService manages the comment lifecycle: creation, moderation, and
// notification fan-out into the pending email queue.
type CommentService struct {
	db           *gorm.DB
	queue        *EmailQueueService
	tokens       *auth.JWTService
	auditService *AuditService
}

// NewCommentService constructs a CommentService instance.
func NewCommentService(db *gorm.DB, queue *EmailQueueService, tokens *auth.JWTService, auditService *AuditService) (*CommentService, error) {
	if db == nil {
		return nil, errors.New("comment service: db is required")
	}
	if queue == nil {
		return nil, errors.New("comment service: email queue is required")
	}
	if tokens == nil {
		return nil, errors.New("comment service: token service is required")
	}
	return &CommentService{
		db:           db,
		queue:        queue,
		tokens:       tokens,
		auditService: auditService,
	}, nil
}

// CreateForPresenter stores a comment from a signed-in user. Presenter
// comments publish immediately and never subscribe their author.
func (s *CommentService) CreateForPresenter(ctx context.Context, input PresenterCommentInput) (*models.Comment, error) {
	ctx = ensureContext(ctx)

	if input.Author == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewBadRequest("comment body is required")
	}

	talk, err := s.loadTalk(ctx, input.TalkID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Body:     input.Body,
		AuthorID: &input.Author.ID,
		TalkID:   talk.ID,
		Notify:   false,
		Approved: true,
	}

	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("comment service: create comment: %w", err)
	}

	metrics.CommentsCreated.WithLabelValues("presenter").Inc()

	if err := s.fanOut(ctx, talk, comment); err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &input.Author.ID,
		Username: input.Author.Username,
		Action:   "comment.create",
		Resource: comment.ID,
		Result:   "success",
		Metadata: map[string]any{"talk_id": talk.ID, "approved": true},
	})

	return comment, nil
}

// CreateForVisitor stores an anonymous comment. Visitor comments are held
// back until the presenter approves them.
func (s *CommentService) CreateForVisitor(ctx context.Context, input VisitorCommentInput) (*models.Comment, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.Body) == "" {
		return nil, apperrors.NewBadRequest("comment body is required")
	}
	name := strings.TrimSpace(input.Name)
	email := normaliseEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	talk, err := s.loadTalk(ctx, input.TalkID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Body:        input.Body,
		AuthorName:  name,
		AuthorEmail: email,
		TalkID:      talk.ID,
		Notify:      input.Notify,
		Approved:    false,
	}

	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("comment service: create comment: %w", err)
	}

	metrics.CommentsCreated.WithLabelValues("anonymous").Inc()

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "comment.create",
		Resource: comment.ID,
		Result:   "success",
		Metadata: map[string]any{"talk_id": talk.ID, "approved": false},
	})

	return comment, nil
}

// ListForTalk returns a talk's comments oldest first. Unapproved comments are
// included only when includeUnapproved is set (talk author or admin view).
func (s *CommentService) ListForTalk(ctx context.Context, talkID string, includeUnapproved bool) ([]models.Comment, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Where("talk_id = ?", talkID).
		Order("timestamp ASC").
		Preload("Author")
	if !includeUnapproved {
		query = query.Where("approved = ?", true)
	}

	var comments []models.Comment
	if err := query.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: list comments: %w", err)
	}
	return comments, nil
}

// ForModeration returns unapproved comments on talks presented by the given
// user. Admins calling with admin=true see every unapproved comment.
func (s *CommentService) ForModeration(ctx context.Context, user *models.User, admin bool) ([]models.Comment, error) {
	ctx = ensureContext(ctx)

	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	query := s.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("comments.approved = ?", false).
		Order("comments.timestamp ASC").
		Preload("Talk")

	if !(admin && user.IsAdmin) {
		query = query.
			Joins("JOIN talks ON talks.id = comments.talk_id").
			Where("talks.author_id = ?", user.ID)
	}

	var comments []models.Comment
	if err := query.Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: moderation queue: %w", err)
	}
	return comments, nil
}

// Approve publishes a held comment and fans out its notifications.
func (s *CommentService) Approve(ctx context.Context, commentID string, actor *models.User) (*models.Comment, error) {
	ctx = ensureContext(ctx)

	comment, talk, err := s.loadCommentWithTalk(ctx, commentID)
	if err != nil {
		return nil, err
	}

	if err := s.authoriseModeration(talk, actor); err != nil {
		return nil, err
	}

	if !comment.Approved {
		if err := s.db.WithContext(ctx).Model(comment).Update("approved", true).Error; err != nil {
			return nil, fmt.Errorf("comment service: approve comment: %w", err)
		}
		comment.Approved = true

		if err := s.fanOut(ctx, talk, comment); err != nil {
			return nil, err
		}
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &actor.ID,
		Username: actor.Username,
		Action:   "comment.approve",
		Resource: comment.ID,
		Result:   "success",
		Metadata: map[string]any{"talk_id": talk.ID},
	})

	return comment, nil
}

// Delete removes a comment. Only the talk's presenter or an admin may delete.
func (s *CommentService) Delete(ctx context.Context, commentID string, actor *models.User) error {
	ctx = ensureContext(ctx)

	comment, talk, err := s.loadCommentWithTalk(ctx, commentID)
	if err != nil {
		return err
	}

	if err := s.authoriseModeration(talk, actor); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", comment.ID).Error; err != nil {
		return fmt.Errorf("comment service: delete comment: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &actor.ID,
		Username: actor.Username,
		Action:   "comment.delete",
		Resource: comment.ID,
		Result:   "success",
		Metadata: map[string]any{"talk_id": talk.ID},
	})

	return nil
}

// Unsubscribe redeems a signed unsubscribe token: every comment on the talk
// left under that email stops receiving notifications.
func (s *CommentService) Unsubscribe(ctx context.Context, token string) (*models.Talk, string, error) {
	ctx = ensureContext(ctx)

	talkID, email, err := s.tokens.ValidateUnsubscribeToken(token)
	if err != nil {
		return nil, "", apperrors.ErrTokenInvalid
	}

	talk, err := s.loadTalk(ctx, talkID)
	if err != nil {
		return nil, "", err
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("talk_id = ? AND author_email = ?", talk.ID, normaliseEmail(email)).
		Update("notify", false).Error; err != nil {
		return nil, "", fmt.Errorf("comment service: unsubscribe: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "comment.unsubscribe",
		Resource: talk.ID,
		Result:   "success",
		Metadata: map[string]any{"email": email},
	})

	return talk, email, nil
}

// NotificationRecipients builds the fan-out set for a new comment: one entry
// per subscribed address, excluding the talk's presenter and the comment's
// own author.
func (s *CommentService) NotificationRecipients(ctx context.Context, talk *models.Talk, newComment *models.Comment) (map[string]string, error) {
	ctx = ensureContext(ctx)

	var comments []models.Comment
	if err := s.db.WithContext(ctx).
		Where("talk_id = ?", talk.ID).
		Preload("Author").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("comment service: load talk comments: %w", err)
	}

	recipients := make(map[string]string)
	for i := range comments {
		comment := &comments[i]
		if !comment.Notify {
			continue
		}

		if comment.Author != nil {
			if comment.Author.ID == talk.AuthorID {
				continue
			}
			if newComment.AuthorID != nil && *newComment.AuthorID == comment.Author.ID {
				continue
			}
			recipients[comment.Author.Email] = comment.Author.DisplayName()
			continue
		}

		if comment.AuthorEmail == "" {
			continue
		}
		if newComment.AuthorEmail == comment.AuthorEmail {
			continue
		}
		recipients[comment.AuthorEmail] = comment.AuthorName
	}

	return recipients, nil
}

func (s *CommentService) fanOut(ctx context.Context, talk *models.Talk, comment *models.Comment) error {
	recipients, err := s.NotificationRecipients(ctx, talk, comment)
	if err != nil {
		return err
	}

	for email, name := range recipients {
		if err := s.queue.QueueCommentNotification(ctx, talk, name, email); err != nil {
			return err
		}
	}
	return nil
}

func (s *CommentService) loadTalk(ctx context.Context, talkID string) (*models.Talk, error) {
	var talk models.Talk
	err := s.db.WithContext(ctx).First(&talk, "id = ?", strings.TrimSpace(talkID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTalkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("comment service: load talk: %w", err)
	}
	return &talk, nil
}

func (s *CommentService) loadCommentWithTalk(ctx context.Context, commentID string) (*models.Comment, *models.Talk, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", strings.TrimSpace(commentID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("comment service: load comment: %w", err)
	}

	talk, err := s.loadTalk(ctx, comment.TalkID)
	if err != nil {
		return nil, nil, err
	}
	return &comment, talk, nil
}

func (s *CommentService) authoriseModeration(talk *models.Talk, actor *models.User) error {
	if actor == nil {
		return apperrors.ErrUnauthorized
	}
	if actor.IsAdmin || actor.ID == talk.AuthorID {
		return nil
	}
	return apperrors.ErrForbidden
}
