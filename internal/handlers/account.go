package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"blog/internal/auth"
	"blog/internal/db"
)

const (
	msgLoginOK      = "Logged in successfully!"
	msgLoginFailed  = "Login failed. Check your email and password."
	msgLogoutOK     = "Logged out successfully!"
	msgRegisterOK   = "Registration successful! You can now log in."
	msgAccountTaken = "Username or email already taken."
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.render(w, r, http.StatusOK, "login", map[string]any{"Title": "Log in", "Form": loginForm{}})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r)
		return
	}

	form, err := parseLoginForm(r)
	page := map[string]any{"Title": "Log in", "Form": form}
	if h.clientError(w, r, err, "login", page) {
		return
	}

	user, err := h.store.FindUserByEmail(r.Context(), form.Email)
	if err != nil {
		serverError(w, r, err)
		return
	}
	// Same message whether the email or the password was wrong.
	if user == nil || !auth.CheckPassword(form.Password, user.PasswordHash) {
		slog.Debug("login failed", "request_id", RequestID(r.Context()))
		h.sessions.AddFlash(w, r, msgLoginFailed)
		h.render(w, r, http.StatusOK, "login", page)
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		serverError(w, r, err)
		return
	}
	slog.Info("user logged in", "user_id", user.ID)
	h.flashRedirect(w, r, msgLoginOK, "/")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		serverError(w, r, err)
		return
	}
	h.flashRedirect(w, r, msgLogoutOK, "/")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.render(w, r, http.StatusOK, "register", map[string]any{"Title": "Register", "Form": registerForm{}})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r)
		return
	}

	form, err := parseRegisterForm(r)
	page := map[string]any{"Title": "Register", "Form": registerForm{Username: form.Username, Email: form.Email}}
	if h.clientError(w, r, err, "register", page) {
		return
	}

	ctx := r.Context()
	taken, err := h.accountTaken(r, form)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if taken {
		h.sessions.AddFlash(w, r, msgAccountTaken)
		h.render(w, r, http.StatusConflict, "register", page)
		return
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		serverError(w, r, err)
		return
	}

	user, err := h.store.InsertUser(ctx, form.Username, form.Email, hash)
	if errors.Is(err, db.ErrUniqueViolation) {
		// Lost a race with a concurrent registration.
		h.sessions.AddFlash(w, r, msgAccountTaken)
		h.render(w, r, http.StatusConflict, "register", page)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	h.flashRedirect(w, r, msgRegisterOK, "/login")
}

func (h *Handler) accountTaken(r *http.Request, form registerForm) (bool, error) {
	byEmail, err := h.store.FindUserByEmail(r.Context(), form.Email)
	if err != nil || byEmail != nil {
		return byEmail != nil, err
	}
	byName, err := h.store.FindUserByUsername(r.Context(), form.Username)
	return byName != nil, err
}
