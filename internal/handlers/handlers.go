package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"blog/internal/auth"
	"blog/internal/models"
)

// Store is the persistence the handlers need.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
	InsertUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	InsertPost(ctx context.Context, title, content string, authorID int64, now time.Time) (*models.Post, error)
	ListPostsByDateDesc(ctx context.Context) ([]models.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error)
	GetPostByID(ctx context.Context, id int64) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post, title, content string, now time.Time) error
	DeletePost(ctx context.Context, post *models.Post) error
}

type Handler struct {
	store    Store
	sessions *auth.Manager
	tpls     *template.Template
	now      func() time.Time
}

func New(store Store, sessions *auth.Manager, tpls *template.Template) *Handler {
	return &Handler{store: store, sessions: sessions, tpls: tpls, now: time.Now}
}

// ParseTemplates loads every page template under templates/ in fsys.
func ParseTemplates(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
	}).ParseFS(fsys, "templates/*.html")
}

// Routes wires every endpoint onto a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(WithRecover)
	r.Use(h.sessions.Middleware)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", h.Index)
	r.HandleFunc("/login", h.Login)
	r.Get("/logout", h.Logout)
	r.HandleFunc("/register", h.Register)

	r.Get("/post/{id:[0-9]+}", h.ShowPost)
	r.With(h.requireAuth).HandleFunc("/create", h.CreatePost)
	r.HandleFunc("/edit/{id:[0-9]+}", h.EditPost)
	r.Post("/delete/{id:[0-9]+}", h.DeletePost)
	r.Get("/author/{id:[0-9]+}", h.AuthorPosts)

	return r
}

func currentUser(r *http.Request) (int64, bool) {
	return auth.UserIDFrom(r.Context())
}

// render executes a page template into a buffer first so a template error
// never produces a half-written page. Flashes are only consumed once the
// page has rendered.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	uid, logged := currentUser(r)
	data["Logged"] = logged
	data["UserID"] = uid
	data["Flashes"] = h.sessions.PeekFlashes(r)

	var buf bytes.Buffer
	if err := h.tpls.ExecuteTemplate(&buf, name, data); err != nil {
		serverError(w, r, err)
		return
	}
	h.sessions.Flashes(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handler) flashRedirect(w http.ResponseWriter, r *http.Request, msg, to string) {
	h.sessions.AddFlash(w, r, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", map[string]any{"Title": "Not Found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// clientError handles a form that could not be parsed or validated.
// It reports whether err was one.
func (h *Handler) clientError(w http.ResponseWriter, r *http.Request, err error, page string, data map[string]any) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		h.sessions.AddFlash(w, r, ve.Message())
		h.render(w, r, http.StatusBadRequest, page, data)
		return true
	}
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
	return true
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}
