package handler

import (
	"errors"
	"net/http"

	"github.com/pitchside/pitchside/internal/activity"
	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/model"
)

// UsersHandler serves the admin-users endpoint. The POST side is an action
// router because login must work unauthenticated while every other action
// needs a super-admin bearer token on the same route.
type UsersHandler struct {
	users    *auth.UserService
	recorder *activity.Recorder
}

// NewUsersHandler creates the admin-users handler. recorder may be nil.
func NewUsersHandler(users *auth.UserService, recorder *activity.Recorder) *UsersHandler {
	return &UsersHandler{users: users, recorder: recorder}
}

type usersActionRequest struct {
	Action      string            `json:"action"`
	Email       string            `json:"email"`
	Password    string            `json:"password"`
	UserID      string            `json:"userId"`
	NewPassword string            `json:"newPassword"`
	Users       []model.AdminUser `json:"users"`
}

// Post routes the admin-users actions: login, saveUsers, resetPassword.
// POST /admin-users
func (h *UsersHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req usersActionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	switch req.Action {
	case "login":
		h.login(w, r, req)
	case "saveUsers":
		h.saveUsers(w, r, req)
	case "resetPassword":
		h.resetPassword(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "Unknown action")
	}
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request, req usersActionRequest) {
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	user, token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var rle *auth.RateLimitError
		switch {
		case errors.As(err, &rle):
			writeJSON(w, http.StatusTooManyRequests, model.ErrorResponse{
				Error:       "Too many failed login attempts. Please try again later.",
				MinutesLeft: rle.MinutesLeft,
			})
		case errors.Is(err, auth.ErrAccountDisabled):
			writeError(w, http.StatusForbidden, "This account has been disabled")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		default:
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}
	h.record(r, user.Email, "login", "users", "")
	// The dashboard reads authToken; older builds read token.
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user":      user,
		"token":     token,
		"authToken": token,
	})
}

func (h *UsersHandler) saveUsers(w http.ResponseWriter, r *http.Request, req usersActionRequest) {
	acting, ok := h.requireSuper(w, r)
	if !ok {
		return
	}
	count, err := h.users.SaveAll(r.Context(), req.Users, acting)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNoSuperAdmin):
			writeError(w, http.StatusBadRequest, "At least one active super-admin is required")
		case errors.Is(err, model.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to save users")
		}
		return
	}
	h.record(r, acting.Email, "saveUsers", "users", "")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (h *UsersHandler) resetPassword(w http.ResponseWriter, r *http.Request, req usersActionRequest) {
	acting, ok := h.requireSuper(w, r)
	if !ok {
		return
	}
	err := h.users.ResetPassword(r.Context(), req.UserID, req.NewPassword, acting)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSelfReset):
			writeError(w, http.StatusBadRequest, "Use your own profile settings to change your password")
		case errors.Is(err, auth.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to reset password")
		}
		return
	}
	h.record(r, acting.Email, "resetPassword", "users", req.UserID)
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true, Message: "Password reset"})
}

// List returns the sanitized user collection. Requires user-management
// permission.
// GET /admin-users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	acting, err := h.users.VerifyRequest(r.Context(), r.Header.Get("Authorization"), false)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !model.CanPerformAction(acting, "manageUsers") {
		writeError(w, http.StatusForbidden, "You do not have permission to manage users")
		return
	}
	users, err := h.users.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}
	sanitized := make([]model.AdminUser, 0, len(users))
	for i := range users {
		sanitized = append(sanitized, *users[i].Sanitized())
	}
	writeSuccess(w, http.StatusOK, sanitized)
}

// Delete removes the user named by ?id=. Super-admin only.
// DELETE /admin-users?id={id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	acting, ok := h.requireSuper(w, r)
	if !ok {
		return
	}
	id := queryString(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}
	if err := h.users.DeleteByID(r.Context(), id, acting); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrLastSuperAdmin):
			writeError(w, http.StatusBadRequest, "Cannot delete the last active super-admin")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete user")
		}
		return
	}
	h.record(r, acting.Email, "deleteUser", "users", id)
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true, Message: "User deleted"})
}

// requireSuper authenticates the request and enforces the super-admin
// role, writing the error response itself on failure.
func (h *UsersHandler) requireSuper(w http.ResponseWriter, r *http.Request) (*model.AdminUser, bool) {
	acting, err := h.users.VerifyRequest(r.Context(), r.Header.Get("Authorization"), true)
	if err != nil {
		if errors.Is(err, auth.ErrSuperAdminRequired) {
			writeError(w, http.StatusForbidden, "Super-admin access required")
		} else {
			writeError(w, http.StatusUnauthorized, "Authentication required")
		}
		return nil, false
	}
	return acting, true
}

func (h *UsersHandler) record(r *http.Request, actor, action, section, detail string) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(r.Context(), actor, action, section, detail)
}
