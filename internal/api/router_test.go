package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/manuphatak/talks/internal/app"
	iauth "github.com/manuphatak/talks/internal/auth"
	"github.com/manuphatak/talks/internal/database/testutil"
	"github.com/manuphatak/talks/internal/models"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	router, _ := newTestRouterWithDB(t)
	return router
}

func newTestRouterWithDB(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "talks-test"})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.BaseURL = "https://talks.example.com"
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true

	router, err := NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Data
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) (string, string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"identifier": username,
		"password":   "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	user, _ := data["user"].(map[string]any)
	id, _ := user["id"].(string)
	require.NotEmpty(t, id)
	return token, id
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/talks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterTalkLifecycle(t *testing.T) {
	router := newTestRouter(t)

	token, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodPost, "/api/talks", token, gin.H{
		"title":       "Shipping Go Services",
		"description": "Lessons learned",
		"venue":       "GopherCon",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	talk, _ := decodeData(t, rec)["talk"].(map[string]any)
	talkID, _ := talk["id"].(string)
	require.NotEmpty(t, talkID)

	rec = doJSON(t, router, http.MethodGet, "/api/talks/"+talkID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/api/talks/"+talkID, token, gin.H{
		"title": "Shipping Go Services, Revised",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Anonymous updates rejected.
	rec = doJSON(t, router, http.MethodPatch, "/api/talks/"+talkID, "", gin.H{
		"title": "Hijacked",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/talks/"+talkID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/talks/"+talkID, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterCommentModerationFlow(t *testing.T) {
	router := newTestRouter(t)

	token, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodPost, "/api/talks", token, gin.H{
		"title": "Moderated Talk",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	talk, _ := decodeData(t, rec)["talk"].(map[string]any)
	talkID, _ := talk["id"].(string)

	// Anonymous comment goes to moderation.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/talks/%s/comments", talkID), "", gin.H{
		"body":  "Nice talk!",
		"name":  "Vic Visitor",
		"email": "vic@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment, _ := decodeData(t, rec)["comment"].(map[string]any)
	commentID, _ := comment["id"].(string)
	require.Equal(t, false, comment["approved"])

	// Hidden from anonymous listing, visible to the presenter.
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/talks/%s/comments", talkID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments, _ := decodeData(t, rec)["comments"].([]any)
	require.Empty(t, comments)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/talks/%s/comments", talkID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments, _ = decodeData(t, rec)["comments"].([]any)
	require.Len(t, comments, 1)

	// Moderation queue and approval.
	rec = doJSON(t, router, http.MethodGet, "/api/moderation", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments, _ = decodeData(t, rec)["comments"].([]any)
	require.Len(t, comments, 1)

	rec = doJSON(t, router, http.MethodPost, "/api/comments/"+commentID+"/approve", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/talks/%s/comments", talkID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments, _ = decodeData(t, rec)["comments"].([]any)
	require.Len(t, comments, 1)
}

func TestRouterPresenterCommentPublishesImmediately(t *testing.T) {
	router := newTestRouter(t)

	token, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodPost, "/api/talks", token, gin.H{"title": "Own Talk"})
	require.Equal(t, http.StatusCreated, rec.Code)
	talk, _ := decodeData(t, rec)["talk"].(map[string]any)
	talkID, _ := talk["id"].(string)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/talks/%s/comments", talkID), token, gin.H{
		"body": "Thanks everyone",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment, _ := decodeData(t, rec)["comment"].(map[string]any)
	require.Equal(t, true, comment["approved"])
}

func TestRouterAPITokenExchange(t *testing.T) {
	router := newTestRouter(t)

	token, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodPost, "/api/tokens", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	apiToken, _ := data["token"].(string)
	require.NotEmpty(t, apiToken)
	require.EqualValues(t, 300, data["expires_in"])

	// The API token authenticates requests too.
	rec = doJSON(t, router, http.MethodGet, "/api/auth/me", apiToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterAuditLogRequiresAdmin(t *testing.T) {
	router, db := newTestRouterWithDB(t)

	adminToken, adminID := registerAndLogin(t, router, "root")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", adminID).Update("is_admin", true).Error)

	userToken, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodGet, "/api/audit", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/audit", userToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/audit?action=user.register", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, _ := decodeData(t, rec)["entries"].([]any)
	require.Len(t, entries, 2)
	first, _ := entries[0].(map[string]any)
	require.Equal(t, "user.register", first["action"])

	rec = doJSON(t, router, http.MethodGet, "/api/audit?since=not-a-time", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterProfileEndpoints(t *testing.T) {
	router := newTestRouter(t)

	token, _ := registerAndLogin(t, router, "presenter")

	rec := doJSON(t, router, http.MethodPatch, "/api/profile", token, gin.H{
		"name":     "Pat Presenter",
		"location": "Portland, OR",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/users/presenter", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user, _ := decodeData(t, rec)["user"].(map[string]any)
	require.Equal(t, "Pat Presenter", user["display_name"])
	// Public profiles never expose the email address.
	require.NotContains(t, user, "email")
}
