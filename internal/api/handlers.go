// Package api exposes the HTTP surface of the activity catalog.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomkillen/koans-api/internal/auth"
	"github.com/tomkillen/koans-api/internal/catalog"
	"github.com/tomkillen/koans-api/internal/completion"
	"github.com/tomkillen/koans-api/internal/domain"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/query"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	catalog     *catalog.Service
	completions *completion.Service
	users       *identity.Service
	tokens      *auth.Service
	log         *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(
	catalogSvc *catalog.Service,
	completionSvc *completion.Service,
	identitySvc *identity.Service,
	tokenSvc *auth.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:     catalogSvc,
		completions: completionSvc,
		users:       identitySvc,
		tokens:      tokenSvc,
		log:         logger,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth", h.authenticate)
	mux.HandleFunc("/v1/user", h.user)
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/categories", h.categories)
	mux.HandleFunc("/v1/categories/", h.categoryByName)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authenticate exchanges Basic credentials for a bearer token.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="koans"`)
		writeError(w, http.StatusUnauthorized, "unauthorized", "basic credentials required")
		return
	}

	token, err := h.tokens.GetAuthTokenForUser(r.Context(), domain.ByUsername(username), password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getUser(w, r)
	case http.MethodPost:
		h.createUser(w, r)
	case http.MethodPatch:
		h.updateUser(w, r)
	case http.MethodDelete:
		h.deleteUser(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), domain.ByID(claims.UserID))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

// createUser registers a new account. Registration is refused for
// callers that already hold credentials.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "already authenticated")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	id, err := h.users.CreateUser(r.Context(), identity.CreateUserInfo{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	err := h.users.UpdateUser(r.Context(), domain.ByID(claims.UserID), domain.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), domain.ByID(claims.UserID)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listActivities(w, r)
	case http.MethodPost:
		h.createActivity(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	filter, err := parseListFilter(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	page, err := h.catalog.GetActivities(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityPage(page))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	info, err := req.ActivityInfo()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	id, err := h.catalog.CreateActivity(r.Context(), info)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	if sub == "completed" {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.setActivityCompleted(w, r, id)
		return
	}
	if sub != "" {
		writeError(w, http.StatusNotFound, "not_found", "no such resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPatch:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// getActivity returns the activity together with the caller's
// completion status. The completion record is checked first; its
// denormalized copy is authoritative for users who completed the
// activity.
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	record, err := h.completions.GetUserActivity(r.Context(), claims.UserID, id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if record != nil {
		view := ActivityDetailView{Completed: true}
		view.ActivityView = toActivityView(domain.Activity{
			ID:           record.ActivityID,
			Created:      record.Created,
			ActivityInfo: record.ActivityInfo,
		})
		writeJSON(w, http.StatusOK, view)
		return
	}

	activity, err := h.catalog.GetActivity(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivityDetailView{ActivityView: toActivityView(*activity)})
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := h.catalog.UpdateActivity(r.Context(), id, req.Update()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	if err := h.catalog.DeleteActivity(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActivityCompleted(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req SetCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "completed is required")
		return
	}

	var err error
	if *req.Completed {
		err = h.completions.CompleteActivity(r.Context(), claims.UserID, id)
	} else {
		err = h.completions.UncompleteActivity(r.Context(), claims.UserID, id)
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	page, pageSize, err := parsePageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	order := query.Asc
	if raw := r.URL.Query().Get("order"); raw != "" {
		parsed, ok := query.ParseOrder(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid order")
			return
		}
		order = parsed
	}

	result, err := h.catalog.GetCategories(r.Context(), page, pageSize, order)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryPage(result))
}

func (h *Handler) categoryByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/categories/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "not_found", "no such resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getCategory(w, r, name)
	case http.MethodPatch:
		h.renameCategory(w, r, name)
	case http.MethodDelete:
		h.deleteCategory(w, r, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// getCategory lists the activities of one category through the same
// filter pipeline as the main listing. An empty result means the
// category does not exist.
func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	filter, err := parseListFilter(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	filter.Categories = []string{name}

	page, err := h.catalog.GetActivities(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if page.Total == 0 {
		writeError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}
	writeJSON(w, http.StatusOK, toActivityPage(page))
}

func (h *Handler) renameCategory(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req RenameCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if _, err := h.catalog.RenameCategory(r.Context(), name, req.NewName); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request, name string) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	if _, err := h.catalog.DeleteCategory(r.Context(), name); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	return claims, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := h.requireUser(w, r)
	if !ok {
		return nil, false
	}
	if !claims.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden", "administrator role required")
		return nil, false
	}
	return claims, true
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a server error.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, "not_found", "category not found")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, domain.ErrTitleConflict):
		writeError(w, http.StatusConflict, "conflict", "title in use")
	case errors.Is(err, domain.ErrUsernameConflict):
		writeError(w, http.StatusConflict, "conflict", "username in use")
	case errors.Is(err, domain.ErrEmailConflict):
		writeError(w, http.StatusConflict, "conflict", "email in use")
	case errors.Is(err, domain.ErrAlreadyComplete):
		writeError(w, http.StatusConflict, "conflict", "activity already complete")
	case errors.Is(err, domain.ErrAlreadyNotComplete):
		writeError(w, http.StatusConflict, "conflict", "activity not complete")
	case errors.Is(err, domain.ErrMalformedRequest):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

// parseListFilter reads the listing query parameters. Malformed values
// are rejected rather than ignored. The category parameter is only
// honoured on the main listing; the per-category route fixes it from
// the path.
func parseListFilter(r *http.Request, withCategories bool) (query.Filter, error) {
	var filter query.Filter
	values := r.URL.Query()

	page, pageSize, err := parsePageParams(r)
	if err != nil {
		return filter, err
	}
	filter.Page = page
	filter.PageSize = pageSize

	filter.SearchTerm = values.Get("query")
	if withCategories {
		filter.Categories = values["category"]
	}

	if raw := values.Get("duration"); raw != "" {
		duration, err := strconv.Atoi(raw)
		if err != nil || duration < 0 {
			return filter, errors.New("invalid duration")
		}
		atLeast := query.AtLeast(duration)
		filter.Duration = &atLeast
	}

	if raw := values.Get("difficulty"); raw != "" {
		rank, err := parseDifficultyParam(raw)
		if err != nil {
			return filter, err
		}
		atLeast := query.AtLeast(rank)
		filter.Difficulty = &atLeast
	}

	sortRaw := values.Get("sort")
	orderRaw := values.Get("order")
	if sortRaw != "" || orderRaw != "" {
		key := query.SortByTitle
		if sortRaw != "" {
			parsed, ok := query.ParseSortKey(sortRaw)
			if !ok {
				return filter, errors.New("invalid sort key")
			}
			key = parsed
		}
		order := query.Asc
		if orderRaw != "" {
			parsed, ok := query.ParseOrder(orderRaw)
			if !ok {
				return filter, errors.New("invalid order")
			}
			order = parsed
		}
		filter.SortBy = []query.SortBy{{Key: key, Order: order}}
	}

	return filter, nil
}

// parsePageParams reads page (>= 1) and pageSize (1..100), leaving
// zero, the service default, when absent.
func parsePageParams(r *http.Request) (page, pageSize int, err error) {
	values := r.URL.Query()
	if raw := values.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}
	if raw := values.Get("pageSize"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 1 || pageSize > 100 {
			return 0, 0, errors.New("invalid pageSize")
		}
	}
	return page, pageSize, nil
}

func parseDifficultyParam(raw string) (int, error) {
	if rank, err := strconv.Atoi(raw); err == nil {
		if !domain.IsDifficultyValue(rank) {
			return 0, errors.New("invalid difficulty")
		}
		return rank, nil
	}
	rank, ok := domain.ParseDifficultyLabel(raw)
	if !ok {
		return 0, errors.New("invalid difficulty")
	}
	return rank, nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
