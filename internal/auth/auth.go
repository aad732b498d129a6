package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "blog_session"
	userIDKey   = "user_id"
	// flashKey is where gorilla/sessions queues flashes by default.
	flashKey = "_flash"
)

// Manager keeps the authenticated user id and pending flash messages in a
// signed cookie. Nothing is stored server side.
type Manager struct {
	store *sessions.CookieStore
}

func NewManager(secret []byte, secure bool) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	// Browser-session cookie: no Max-Age or Expires, and no codec age limit.
	store.MaxAge(0)
	return &Manager{store: store}
}

func (m *Manager) session(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, sessionName)
	if err != nil {
		// A cookie we cannot decode (rotated secret, tampering) counts as anonymous.
		slog.Debug("discarding unreadable session", "error", err)
	}
	return s
}

// Login marks the browser as authenticated as userID.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	s := m.session(r)
	s.Values[userIDKey] = userID
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout drops the user id but keeps the cookie so flashes survive the redirect.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.session(r)
	delete(s.Values, userIDKey)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *Manager) CurrentUserID(r *http.Request) (int64, bool) {
	id, ok := m.session(r).Values[userIDKey].(int64)
	return id, ok && id > 0
}

// AddFlash queues msg for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, msg string) {
	s := m.session(r)
	s.AddFlash(msg)
	if err := s.Save(r, w); err != nil {
		slog.Error("failed to save flash", "error", err)
	}
}

// Flashes returns and clears the queued messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	s := m.session(r)
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := s.Save(r, w); err != nil {
		slog.Error("failed to clear flashes", "error", err)
	}
	return flashStrings(raw)
}

// PeekFlashes returns the queued messages and leaves them queued.
func (m *Manager) PeekFlashes(r *http.Request) []string {
	raw, _ := m.session(r).Values[flashKey].([]interface{})
	return flashStrings(raw)
}

func flashStrings(raw []interface{}) []string {
	if len(raw) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// UserIDFrom reports the authenticated user id, if any.
func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

// Middleware copies the session user id into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.CurrentUserID(r); ok {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
