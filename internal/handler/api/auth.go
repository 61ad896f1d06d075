// Copyright (c) 2026 CREAS Digital
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/creasdigital/paefi-go/internal/auth"
	"github.com/creasdigital/paefi-go/internal/middleware"
	"github.com/creasdigital/paefi-go/internal/model"
)

// loginRequest is the body of POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// userResponse is the public view of a user.
type userResponse struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

// Login handles POST /api/v1/auth/login. Account lockout is checked before
// the password so a locked account cannot be probed, and failed attempts
// answer with the same message whether the username exists or not.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteValidationError(w, map[string]string{
			"username": "Username and password are required",
		})
		return
	}

	if locked, remaining := h.loginProt.IsAccountLocked(req.Username); locked {
		WriteError(w, http.StatusTooManyRequests, "account_locked",
			fmt.Sprintf("Account temporarily locked. Try again in %d minutes.", int(remaining.Minutes())+1), nil)
		return
	}

	user, err := h.queries.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.loginProt.RecordFailedAttempt(req.Username)
		h.audit.Record(r, model.EventCategoryAuth, "login.failed", map[string]any{"username": req.Username})
		WriteUnauthorized(w, "Invalid username or password")
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		slog.Error("password verification failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Login failed")
		return
	}
	if !ok {
		h.loginProt.RecordFailedAttempt(req.Username)
		h.audit.Record(r, model.EventCategoryAuth, "login.failed", map[string]any{"username": req.Username})
		WriteUnauthorized(w, "Invalid username or password")
		return
	}

	h.loginProt.RecordSuccessfulLogin(req.Username)

	// Fresh token on privilege change prevents session fixation
	if err := h.sessions.RenewToken(r.Context()); err != nil {
		slog.Error("session renewal failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Login failed")
		return
	}
	h.sessions.Put(r.Context(), middleware.SessionKeyUserID, user.ID)

	if err := h.queries.UpdateUserLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		slog.Warn("updating last login failed", "error", err, "user_id", user.ID)
	}

	h.audit.Record(r, model.EventCategoryAuth, "login", map[string]any{"username": user.Username})
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username, "role", user.Role)

	WriteSuccess(w, toUserResponse(&user))
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.audit.Record(r, model.EventCategoryAuth, "logout", nil)

	if err := h.sessions.Destroy(r.Context()); err != nil {
		slog.Error("session destroy failed", "error", err)
		WriteInternalError(w, "Logout failed")
		return
	}

	WriteSuccess(w, map[string]string{"status": "logged_out"})
}

// Me handles GET /api/v1/auth/me, returning the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	WriteSuccess(w, toUserResponse(user))
}
