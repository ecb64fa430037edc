package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/database/testutil"
	"github.com/manuphatak/talks/internal/models"
)

func newQueueFixture(t *testing.T) (*EmailQueueService, *auth.JWTService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	tokens, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "talks-test"})
	require.NoError(t, err)
	queue, err := NewEmailQueueService(db, tokens, WithQueueBaseURL("https://talks.example.com/"))
	require.NoError(t, err)
	return queue, tokens, db
}

func seedTalk(t *testing.T, db *gorm.DB, title string) *models.Talk {
	t.Helper()

	user := models.User{Username: "presenter-" + title, Email: title + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	talk := models.Talk{Title: title, AuthorID: user.ID}
	require.NoError(t, db.Create(&talk).Error)
	return &talk
}

func TestEmailQueueDeduplicatesPerTalkAndAddress(t *testing.T) {
	queue, _, db := newQueueFixture(t)
	ctx := context.Background()

	talk := seedTalk(t, db, "Dedup Talk")

	require.NoError(t, queue.QueueCommentNotification(ctx, talk, "Vic", "vic@example.com"))
	require.NoError(t, queue.QueueCommentNotification(ctx, talk, "Vic", "VIC@example.com"))

	count, err := queue.PendingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	other := seedTalk(t, db, "Other Talk")
	require.NoError(t, queue.QueueCommentNotification(ctx, other, "Vic", "vic@example.com"))

	count, err = queue.PendingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestEmailQueueNotificationCarriesUnsubscribeLink(t *testing.T) {
	queue, tokens, db := newQueueFixture(t)
	ctx := context.Background()

	talk := seedTalk(t, db, "Linked Talk")
	require.NoError(t, queue.QueueCommentNotification(ctx, talk, "Vic", "vic@example.com"))

	var pending models.PendingEmail
	require.NoError(t, db.First(&pending).Error)
	require.Equal(t, "vic@example.com", pending.Email)
	require.Contains(t, pending.Subject, "Linked Talk")
	require.Contains(t, pending.BodyText, "https://talks.example.com/api/unsubscribe?token=")
	require.Contains(t, pending.BodyHTML, "https://talks.example.com/api/unsubscribe?token=")

	// The embedded token must redeem for this talk and address.
	const prefix = "https://talks.example.com/api/unsubscribe?token="
	start := strings.Index(pending.BodyText, prefix)
	require.GreaterOrEqual(t, start, 0)
	token := strings.Fields(pending.BodyText[start+len(prefix):])[0]

	talkID, email, err := tokens.ValidateUnsubscribeToken(token)
	require.NoError(t, err)
	require.Equal(t, talk.ID, talkID)
	require.Equal(t, "vic@example.com", email)
}

func TestEmailQueueRemoveClearsAllRowsForAddress(t *testing.T) {
	queue, _, db := newQueueFixture(t)
	ctx := context.Background()

	first := seedTalk(t, db, "First Talk")
	second := seedTalk(t, db, "Second Talk")

	require.NoError(t, queue.QueueCommentNotification(ctx, first, "Vic", "vic@example.com"))
	require.NoError(t, queue.QueueCommentNotification(ctx, second, "Vic", "vic@example.com"))
	require.NoError(t, queue.QueueCommentNotification(ctx, first, "Pat", "pat@example.com"))

	require.NoError(t, queue.Remove(ctx, "vic@example.com"))

	count, err := queue.PendingCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	queued, err := queue.AlreadyQueued(ctx, "pat@example.com", first.ID)
	require.NoError(t, err)
	require.True(t, queued)
}

func TestEmailQueueNextDigestGroupsByAddress(t *testing.T) {
	queue, _, db := newQueueFixture(t)
	ctx := context.Background()

	first := seedTalk(t, db, "First Talk")
	second := seedTalk(t, db, "Second Talk")

	require.NoError(t, queue.QueueCommentNotification(ctx, first, "Vic", "vic@example.com"))
	require.NoError(t, queue.QueueCommentNotification(ctx, second, "Vic", "vic@example.com"))
	require.NoError(t, queue.QueueCommentNotification(ctx, first, "Pat", "pat@example.com"))

	digest, err := queue.NextDigest(ctx)
	require.NoError(t, err)
	require.NotNil(t, digest)
	require.Equal(t, "vic@example.com", digest.Email)
	require.Len(t, digest.Items, 2)

	require.NoError(t, queue.Remove(ctx, digest.Email))

	digest, err = queue.NextDigest(ctx)
	require.NoError(t, err)
	require.NotNil(t, digest)
	require.Equal(t, "pat@example.com", digest.Email)
	require.Len(t, digest.Items, 1)

	require.NoError(t, queue.Remove(ctx, digest.Email))

	digest, err = queue.NextDigest(ctx)
	require.NoError(t, err)
	require.Nil(t, digest)
}
