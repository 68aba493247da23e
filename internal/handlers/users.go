package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/models"
	"github.com/jacobwhite/taskdeck/internal/services"
	pkghttp "github.com/jacobwhite/taskdeck/pkg/http"
)

// UserServiceInterface defines the interface for user business logic
type UserServiceInterface interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// ListUsersResponse represents the response for listing users
type ListUsersResponse struct {
	Users []*services.UserResponse `json:"users"`
	Count int                      `json:"count"`
}

func userToResponse(user *models.User) *services.UserResponse {
	return &services.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

// GetCurrentUser handles GET /users/me
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userToResponse(user))
}

// ListUsers handles GET /admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			pkghttp.WriteBadRequest(w, "Invalid limit")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			pkghttp.WriteBadRequest(w, "Invalid offset")
			return
		}
		offset = n
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeUserError(w, err)
		return
	}

	resp := ListUsersResponse{
		Users: make([]*services.UserResponse, 0, len(users)),
		Count: len(users),
	}
	for _, user := range users {
		resp.Users = append(resp.Users, userToResponse(user))
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteUser handles DELETE /admin/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		pkghttp.WriteBadRequest(w, "User ID is required")
		return
	}

	// An admin deleting their own account would strand the session; make
	// them use a second admin for that.
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == id {
		pkghttp.WriteBadRequest(w, "Cannot delete your own account")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
