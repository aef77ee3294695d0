package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomkillen/koans-api/internal/auth"
	"github.com/tomkillen/koans-api/internal/catalog"
	"github.com/tomkillen/koans-api/internal/completion"
	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/storage/memory"
)

type testServer struct {
	handler http.Handler
	users   *identity.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()

	catalogSvc := catalog.NewService(store.Activities())
	identitySvc := identity.NewService(store.Users())
	completionSvc := completion.NewService(store.Completions(), store.Users(), store.Activities())

	authCfg := auth.Config{Secret: "test-secret", Issuer: "koans.test", Audience: "koans.test"}
	tokenSvc := auth.NewService(authCfg, identitySvc)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(catalogSvc, completionSvc, identitySvc, tokenSvc, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	middleware := auth.NewMiddleware(authCfg, func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/v1/auth":
			return true
		case "/v1/user":
			return r.Method == http.MethodPost
		}
		return false
	})

	return &testServer{
		handler: middleware.Wrap(mux),
		users:   identitySvc,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// register creates a user through the API and returns a bearer token
// obtained via the basic-auth exchange.
func (s *testServer) register(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/user", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return s.token(t, username, password)
}

func (s *testServer) token(t *testing.T, username, password string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth", nil)
	req.SetBasicAuth(username, password)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// admin provisions an administrator directly through the identity
// service, since there is no registration path for admins.
func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	_, err := s.users.CreateUser(context.Background(), identity.CreateUserInfo{
		Username: "admin",
		Email:    "admin@koans.example.com",
		Password: "admin",
		Roles:    []string{domain.RoleAdmin},
	})
	require.NoError(t, err)
	return s.token(t, "admin", "admin")
}

func (s *testServer) createActivity(t *testing.T, adminToken, title, category string, difficulty int) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/activities", adminToken, map[string]any{
		"title":       title,
		"category":    category,
		"description": "description of " + title,
		"duration":    600,
		"difficulty":  difficulty,
		"content":     "content of " + title,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegistration(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/user", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created CreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// Duplicate username conflicts case-insensitively.
	rec = s.do(t, http.MethodPost, "/v1/user", "", map[string]string{
		"username": "ALICE", "email": "other@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Malformed email is rejected.
	rec = s.do(t, http.MethodPost, "/v1/user", "", map[string]string{
		"username": "bob", "email": "not-an-email", "password": "pw",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Authenticated callers cannot register again.
	token := s.token(t, "alice", "hunter2")
	rec = s.do(t, http.MethodPost, "/v1/user", token, map[string]string{
		"username": "carol", "email": "carol@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "hunter2")

	// Wrong password.
	req := httptest.NewRequest(http.MethodGet, "/v1/auth", nil)
	req.SetBasicAuth("alice", "wrong")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// No credentials at all.
	rec = s.do(t, http.MethodGet, "/v1/auth", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserProfileLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "hunter2")

	rec := s.do(t, http.MethodGet, "/v1/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "alice", view.Username)
	require.Equal(t, "alice@example.com", view.Email)
	require.NotNil(t, view.Roles)
	require.Empty(t, view.Roles)

	// No token at all.
	rec = s.do(t, http.MethodGet, "/v1/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Update the email.
	rec = s.do(t, http.MethodPatch, "/v1/user", token, map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "new@example.com", view.Email)

	// An empty patch is malformed.
	rec = s.do(t, http.MethodPatch, "/v1/user", token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Delete the account; the still-valid token now resolves no user.
	rec = s.do(t, http.MethodDelete, "/v1/user", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/user", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivityWritesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	userToken := s.register(t, "alice", "hunter2")

	body := map[string]any{
		"title": "Morning Yoga", "category": "yoga", "description": "d",
		"duration": 600, "difficulty": 2, "content": "c",
	}

	rec := s.do(t, http.MethodPost, "/v1/activities", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/activities", userToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := s.admin(t)
	rec = s.do(t, http.MethodPost, "/v1/activities", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Same title again conflicts.
	rec = s.do(t, http.MethodPost, "/v1/activities", adminToken, body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestActivityAcceptsDifficultyLabels(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)

	rec := s.do(t, http.MethodPost, "/v1/activities", adminToken, map[string]any{
		"title": "Iron Crucible", "category": "strength", "description": "d",
		"duration": 600, "difficulty": "extreme", "content": "c",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(t, http.MethodGet, "/v1/activities/"+created.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view ActivityDetailView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 5, view.Difficulty)

	// Unknown labels are rejected.
	rec = s.do(t, http.MethodPost, "/v1/activities", adminToken, map[string]any{
		"title": "Other", "category": "strength", "description": "d",
		"duration": 600, "difficulty": "impossible", "content": "c",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityUpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	userToken := s.register(t, "alice", "hunter2")
	id := s.createActivity(t, adminToken, "Morning Yoga", "yoga", 2)
	other := s.createActivity(t, adminToken, "Evening Yoga", "yoga", 3)

	rec := s.do(t, http.MethodPatch, "/v1/activities/"+id, userToken, map[string]any{"duration": 900})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/activities/"+id, adminToken, map[string]any{"duration": 900})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Renaming onto another activity's title conflicts.
	rec = s.do(t, http.MethodPatch, "/v1/activities/"+other, adminToken, map[string]any{"title": "MORNING yoga"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// An empty patch is malformed.
	rec = s.do(t, http.MethodPatch, "/v1/activities/"+id, adminToken, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/activities/"+id, adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/activities/"+id, adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/activities/"+id, adminToken, map[string]any{"duration": 900})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListActivities(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	s.createActivity(t, adminToken, "Morning Yoga", "yoga", 2)
	s.createActivity(t, adminToken, "Evening Yoga", "yoga", 3)
	s.createActivity(t, adminToken, "Iron Crucible", "strength", 5)

	rec := s.do(t, http.MethodGet, "/v1/activities", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ActivityPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 3, page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 20, page.PageSize)

	// Difficulty accepts labels on the query string too.
	rec = s.do(t, http.MethodGet, "/v1/activities?difficulty=challenging", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	require.Equal(t, "Iron Crucible", page.Activities[0].Title)

	// Category filtering is case-insensitive and repeatable.
	rec = s.do(t, http.MethodGet, "/v1/activities?category=YOGA&category=strength", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 3, page.Total)

	rec = s.do(t, http.MethodGet, "/v1/activities?sort=difficulty&order=desc&pageSize=1", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, "Iron Crucible", page.Activities[0].Title)

	for _, path := range []string{
		"/v1/activities?pageSize=0",
		"/v1/activities?pageSize=101",
		"/v1/activities?page=banana",
		"/v1/activities?sort=height",
		"/v1/activities?order=sideways",
		"/v1/activities?difficulty=herculean",
	} {
		rec = s.do(t, http.MethodGet, path, adminToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCompletionFlow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	userToken := s.register(t, "alice", "hunter2")
	id := s.createActivity(t, adminToken, "Morning Yoga", "yoga", 2)

	completedPath := fmt.Sprintf("/v1/activities/%s/completed", id)

	// Missing field is malformed.
	rec := s.do(t, http.MethodPut, completedPath, userToken, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, completedPath, userToken, map[string]any{"completed": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPut, completedPath, userToken, map[string]any{"completed": true})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/activities/"+id, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view ActivityDetailView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.True(t, view.Completed)

	// Completion is per user.
	rec = s.do(t, http.MethodGet, "/v1/activities/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.False(t, view.Completed)

	rec = s.do(t, http.MethodPut, completedPath, userToken, map[string]any{"completed": false})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPut, completedPath, userToken, map[string]any{"completed": false})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Unknown activity.
	rec = s.do(t, http.MethodPut, "/v1/activities/missing/completed", userToken, map[string]any{"completed": true})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)
	userToken := s.register(t, "alice", "hunter2")
	s.createActivity(t, adminToken, "Morning Yoga", "yoga", 2)
	s.createActivity(t, adminToken, "Evening Yoga", "yoga", 3)
	s.createActivity(t, adminToken, "Iron Crucible", "strength", 5)

	rec := s.do(t, http.MethodGet, "/v1/categories", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page CategoryPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 2, page.Total)
	require.Equal(t, []CategoryView{
		{Name: "strength", Count: 1},
		{Name: "yoga", Count: 2},
	}, page.Categories)

	// Per-category listing matches case-insensitively.
	rec = s.do(t, http.MethodGet, "/v1/categories/YOGA", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activities ActivityPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &activities))
	require.Equal(t, 2, activities.Total)

	rec = s.do(t, http.MethodGet, "/v1/categories/swimming", userToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Rename requires admin and cascades to the listing.
	rec = s.do(t, http.MethodPatch, "/v1/categories/yoga", userToken, map[string]string{"newName": "stretching"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/categories/yoga", adminToken, map[string]string{"newName": "stretching"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/categories/yoga", userToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/categories/stretching", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Rename of a missing category and with a missing name both fail.
	rec = s.do(t, http.MethodPatch, "/v1/categories/yoga", adminToken, map[string]string{"newName": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPatch, "/v1/categories/stretching", adminToken, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Delete removes the category and its activities.
	rec = s.do(t, http.MethodDelete, "/v1/categories/STRETCHING", adminToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/categories", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
}

func TestSearchRanking(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.admin(t)

	rec := s.do(t, http.MethodPost, "/v1/activities", adminToken, map[string]any{
		"title": "Stegosaurus Stretch", "category": "stretching", "description": "d",
		"duration": 600, "difficulty": 1, "content": "c",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/activities", adminToken, map[string]any{
		"title": "Evening Wind Down", "category": "stretching", "description": "d",
		"duration": 600, "difficulty": 1, "content": "imagine a stegosaurus while you stretch",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/activities?query=stegosaurus", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page ActivityPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 2, page.Total)
	require.Equal(t, "Stegosaurus Stretch", page.Activities[0].Title)

	rec = s.do(t, http.MethodGet, "/v1/activities?query=quarternion", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Zero(t, page.Total)
}
