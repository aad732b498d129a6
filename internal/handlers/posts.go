package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"blog/internal/db"
	"blog/internal/models"
)

const (
	msgPostCreated  = "Post created successfully!"
	msgPostUpdated  = "Post updated successfully!"
	msgPostDeleted  = "Post deleted successfully!"
	msgEditDenied   = "You are not allowed to edit this post."
	msgDeleteDenied = "You are not allowed to delete this post."
)

func postURL(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

// -------- Pages

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPostsByDateDesc(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "index", map[string]any{"Title": "Home", "Posts": posts})
}

func (h *Handler) AuthorPosts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return
	}
	author, err := h.store.FindUserByID(r.Context(), id)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if author == nil {
		h.NotFound(w, r)
		return
	}
	posts, err := h.store.ListPostsByAuthor(r.Context(), id)
	if err != nil {
		serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "author", map[string]any{
		"Title":  author.Username,
		"Author": author,
		"Posts":  posts,
	})
}

// loadPost fetches the {id} post. On false the response has been written.
func (h *Handler) loadPost(w http.ResponseWriter, r *http.Request) (*models.Post, bool) {
	id, ok := idParam(r)
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		serverError(w, r, err)
		return nil, false
	}
	if post == nil {
		h.NotFound(w, r)
		return nil, false
	}
	return post, true
}

func (h *Handler) ShowPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	uid, logged := currentUser(r)
	h.render(w, r, http.StatusOK, "post", map[string]any{
		"Title":    post.Title,
		"Post":     post,
		"IsAuthor": post.IsAuthoredBy(uid, logged),
	})
}

// CreatePost is mounted behind requireAuth.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.render(w, r, http.StatusOK, "create", map[string]any{"Title": "New post", "Form": postForm{}})
		return
	case http.MethodPost:
	default:
		methodNotAllowed(w, r)
		return
	}

	uid, _ := currentUser(r)
	form, err := parsePostForm(r)
	if h.clientError(w, r, err, "create", map[string]any{"Title": "New post", "Form": form}) {
		return
	}

	post, err := h.store.InsertPost(r.Context(), form.Title, form.Content, uid, h.now())
	if err != nil {
		serverError(w, r, err)
		return
	}
	slog.Info("post created", "post_id", post.ID, "author_id", uid)
	h.flashRedirect(w, r, msgPostCreated, "/")
}

func (h *Handler) EditPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	uid, logged := currentUser(r)
	if !post.IsAuthoredBy(uid, logged) {
		slog.Warn("edit denied", "post_id", post.ID, "user_id", uid)
		h.flashRedirect(w, r, msgEditDenied, "/")
		return
	}

	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "edit", map[string]any{
			"Title": "Edit post",
			"Post":  post,
			"Form":  postForm{Title: post.Title, Content: post.Content},
		})
		return
	}

	form, err := parsePostForm(r)
	if h.clientError(w, r, err, "edit", map[string]any{"Title": "Edit post", "Post": post, "Form": form}) {
		return
	}

	err = h.store.UpdatePost(r.Context(), post, form.Title, form.Content, h.now())
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	slog.Info("post updated", "post_id", post.ID, "author_id", uid)
	h.flashRedirect(w, r, msgPostUpdated, postURL(post.ID))
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	uid, logged := currentUser(r)
	if !post.IsAuthoredBy(uid, logged) {
		slog.Warn("delete denied", "post_id", post.ID, "user_id", uid)
		h.flashRedirect(w, r, msgDeleteDenied, "/")
		return
	}

	err := h.store.DeletePost(r.Context(), post)
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	slog.Info("post deleted", "post_id", post.ID, "author_id", uid)
	h.flashRedirect(w, r, msgPostDeleted, "/")
}
