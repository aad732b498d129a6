package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog/internal/auth"
	"blog/internal/db"
	"blog/internal/logger"
	"blog/web"
)

type testApp struct {
	t     *testing.T
	store *db.DB
	h     *Handler
	srv   *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	store, err := db.Open(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	tpls, err := ParseTemplates(web.Templates)
	require.NoError(t, err)

	h := New(store, auth.NewManager([]byte("0123456789abcdef0123456789abcdef"), false), tpls)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &testApp{t: t, store: store, h: h, srv: srv}
}

type browser struct {
	app    *testApp
	client *http.Client
}

func (a *testApp) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &browser{app: a, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(req *http.Request) page {
	t := b.app.t
	t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (b *browser) get(path string) page {
	req, err := http.NewRequest(http.MethodGet, b.app.srv.URL+path, nil)
	require.NoError(b.app.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	req, err := http.NewRequest(http.MethodPost, b.app.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.app.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// follow loads the redirect target of p.
func (b *browser) follow(p page) page {
	require.Equal(b.app.t, http.StatusSeeOther, p.status)
	return b.get(p.location)
}

func (b *browser) register(username, email, password string) page {
	return b.post("/register", url.Values{"username": {username}, "email": {email}, "password": {password}})
}

func (b *browser) login(email, password string) page {
	return b.post("/login", url.Values{"email": {email}, "password": {password}})
}

// signup registers and logs in, returning the new user's id.
func (b *browser) signup(username, email, password string) int64 {
	t := b.app.t
	require.Equal(t, "/login", b.register(username, email, password).location)
	require.Equal(t, "/", b.login(email, password).location)
	u, err := b.app.store.FindUserByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u.ID
}

func (b *browser) createPost(title, content string) page {
	return b.post("/create", url.Values{"title": {title}, "content": {content}})
}

func TestBlogScenario(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	alice := app.browser()
	bob := app.browser()

	p := alice.register("alice", "a@x.com", "secret")
	assert.Equal(t, "/login", p.location)
	assert.Contains(t, alice.follow(p).body, msgRegisterOK)

	p = alice.login("a@x.com", "secret")
	assert.Equal(t, "/", p.location)
	assert.Contains(t, alice.follow(p).body, msgLoginOK)

	p = alice.createPost("Hi", "World")
	assert.Equal(t, "/", p.location)
	home := alice.follow(p)
	assert.Contains(t, home.body, msgPostCreated)
	assert.Contains(t, home.body, ">Hi</a>")

	posts, err := app.store.ListPostsByDateDesc(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	post := posts[0]
	assert.Equal(t, "Hi", post.Title)

	edited := post.DatePosted.Add(time.Hour)
	app.h.now = func() time.Time { return edited }
	p = alice.post("/edit/"+idString(post.ID), url.Values{"title": {"Hi2"}, "content": {"World"}})
	assert.Equal(t, postURL(post.ID), p.location)
	assert.Contains(t, alice.follow(p).body, msgPostUpdated)

	updated, err := app.store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi2", updated.Title)
	assert.True(t, updated.DatePosted.Equal(edited))

	bob.signup("bob", "b@x.com", "hunter2")
	p = bob.post("/delete/"+idString(post.ID), nil)
	assert.Equal(t, "/", p.location)
	assert.Contains(t, bob.follow(p).body, msgDeleteDenied)

	still, err := app.store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, still)

	p = alice.post("/delete/"+idString(post.ID), nil)
	assert.Equal(t, "/", p.location)
	assert.Contains(t, alice.follow(p).body, msgPostDeleted)

	posts, err = app.store.ListPostsByDateDesc(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, http.StatusNotFound, alice.get(postURL(post.ID)).status)
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestIndexListsNewestFirst(t *testing.T) {
	app := newTestApp(t)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	app.h.now = func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}

	b := app.browser()
	b.signup("alice", "a@x.com", "secret")
	for _, title := range []string{"older", "newer"} {
		require.Equal(t, "/", b.createPost(title, "body").location)
	}

	body := app.browser().get("/").body
	assert.Less(t, strings.Index(body, ">newer<"), strings.Index(body, ">older<"))
}

func TestPostTimestampsFollowRequestClock(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	app.h.now = func() time.Time { return created }

	b := app.browser()
	uid := b.signup("alice", "a@x.com", "secret")
	require.Equal(t, "/", b.createPost("Hi", "World").location)

	posts, err := app.store.ListPostsByAuthor(ctx, uid)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].DatePosted.Equal(created))

	edited := created.Add(30 * time.Minute)
	app.h.now = func() time.Time { return edited }
	p := b.post("/edit/"+idString(posts[0].ID), url.Values{"title": {"Hi"}, "content": {"World2"}})
	require.Equal(t, postURL(posts[0].ID), p.location)

	stored, err := app.store.GetPostByID(ctx, posts[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.DatePosted.Equal(edited))
	assert.True(t, stored.DatePosted.After(posts[0].DatePosted))
}

func TestRenderFailureKeepsFlashes(t *testing.T) {
	app := newTestApp(t)
	_, err := app.h.tpls.Parse(`{{define "index"}}{{index .Posts 99}}{{end}}`)
	require.NoError(t, err)

	b := app.browser()
	b.signup("alice", "a@x.com", "secret")

	p := b.get("/")
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.NotContains(t, p.body, msgLoginOK)

	p = b.get("/login")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, msgRegisterOK)
	assert.Contains(t, p.body, msgLoginOK)

	assert.NotContains(t, b.get("/login").body, msgLoginOK)
}

func TestIndexEmpty(t *testing.T) {
	app := newTestApp(t)

	p := app.browser().get("/")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "No posts yet.")
}

func TestRegisterStoresHashedPassword(t *testing.T) {
	app := newTestApp(t)

	app.browser().register("alice", "a@x.com", "secret")

	u, err := app.store.FindUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotEqual(t, "secret", u.PasswordHash)
	assert.True(t, auth.CheckPassword("secret", u.PasswordHash))
}

func TestRegisterDuplicate(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	require.Equal(t, "/login", b.register("alice", "a@x.com", "secret").location)

	p := b.register("alice2", "a@x.com", "secret")
	assert.Equal(t, http.StatusConflict, p.status)
	assert.Contains(t, p.body, msgAccountTaken)

	p = b.register("alice", "other@x.com", "secret")
	assert.Equal(t, http.StatusConflict, p.status)
	assert.Contains(t, p.body, msgAccountTaken)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	p := app.browser().register("  ", "a@x.com", "")
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "username, password")

	u, err := app.store.FindUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

// logSink collects log output written from server goroutines.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestLoginFailureIsGeneric(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	logs := &logSink{}
	logger.InitWriter(logs, "development", true)

	app := newTestApp(t)
	b := app.browser()
	b.register("alice", "a@x.com", "secret")

	wrongPassword := b.login("a@x.com", "nope")
	unknownEmail := b.login("z@x.com", "secret")
	for _, p := range []page{wrongPassword, unknownEmail} {
		assert.Equal(t, http.StatusOK, p.status)
		assert.Contains(t, p.body, msgLoginFailed)
		assert.Contains(t, p.body, `href="/login"`, "still anonymous")
	}

	p := b.createPost("Hi", "World")
	assert.Equal(t, "/login", p.location)

	assert.Contains(t, logs.String(), "login failed")
	assert.NotContains(t, logs.String(), "a@x.com")
	assert.NotContains(t, logs.String(), "z@x.com")
}

func TestLogoutIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.signup("alice", "a@x.com", "secret")

	for i := 0; i < 2; i++ {
		p := b.get("/logout")
		assert.Equal(t, "/", p.location)
		assert.Contains(t, b.follow(p).body, msgLogoutOK)
	}
	assert.Equal(t, "/login", b.createPost("Hi", "World").location)
}

func TestCreateRequiresLogin(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	p := b.get("/create")
	assert.Equal(t, "/login", p.location)
	assert.Contains(t, b.follow(p).body, "You must be logged in to create a post.")

	p = b.createPost("Hi", "World")
	assert.Equal(t, "/login", p.location)

	posts, err := app.store.ListPostsByDateDesc(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreateValidation(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.signup("alice", "a@x.com", "secret")

	p := b.get("/create")
	assert.Equal(t, http.StatusOK, p.status)

	p = b.createPost("", "World")
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "title")

	p = b.createPost(strings.Repeat("x", maxTitleLen+1), "World")
	assert.Equal(t, http.StatusBadRequest, p.status)
}

func TestViewPost(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.signup("alice", "a@x.com", "secret")
	b.createPost("Hi", "World")

	posts, err := app.store.ListPostsByDateDesc(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := app.browser().get(postURL(posts[0].ID))
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "World")
	assert.NotContains(t, p.body, "/edit/", "anonymous visitors get no edit link")

	assert.Contains(t, b.get(postURL(posts[0].ID)).body, "/edit/")
}

func TestViewMissingPost(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	for _, path := range []string{"/post/999", "/post/abc", "/post/99999999999999999999", "/nowhere"} {
		p := b.get(path)
		assert.Equal(t, http.StatusNotFound, p.status, path)
		assert.Contains(t, p.body, "Not Found", path)
	}
}

func TestEditAndDeleteMissingPost(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.signup("alice", "a@x.com", "secret")

	assert.Equal(t, http.StatusNotFound, b.get("/edit/5").status)
	assert.Equal(t, http.StatusNotFound, b.post("/edit/5", url.Values{"title": {"t"}, "content": {"c"}}).status)
	assert.Equal(t, http.StatusNotFound, b.post("/delete/5", nil).status)
}

func TestEditDeniedForOthers(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	alice := app.browser()
	alice.signup("alice", "a@x.com", "secret")
	alice.createPost("Hi", "World")

	posts, err := app.store.ListPostsByDateDesc(ctx)
	require.NoError(t, err)
	post := posts[0]
	editURL := "/edit/" + idString(post.ID)

	bob := app.browser()
	bob.signup("bob", "b@x.com", "hunter2")
	anon := app.browser()

	for _, b := range []*browser{bob, anon} {
		p := b.get(editURL)
		assert.Equal(t, "/", p.location)
		assert.Contains(t, b.follow(p).body, msgEditDenied)

		p = b.post(editURL, url.Values{"title": {"pwned"}, "content": {"x"}})
		assert.Equal(t, "/", p.location)

		p = b.post("/delete/"+idString(post.ID), nil)
		assert.Equal(t, "/", p.location)
	}

	got, err := app.store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hi", got.Title)
	assert.True(t, got.DatePosted.Equal(post.DatePosted))
}

func TestEditForm(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.signup("alice", "a@x.com", "secret")
	b.createPost("Hi", "World")

	posts, err := app.store.ListPostsByDateDesc(context.Background())
	require.NoError(t, err)
	editURL := "/edit/" + idString(posts[0].ID)

	p := b.get(editURL)
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, `value="Hi"`)

	p = b.post(editURL, url.Values{"title": {"Hi2"}, "content": {" "}})
	assert.Equal(t, http.StatusBadRequest, p.status)
	assert.Contains(t, p.body, "content")
}

func TestDeleteRequiresPost(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusMethodNotAllowed, app.browser().get("/delete/1").status)
}

func TestAuthorPosts(t *testing.T) {
	app := newTestApp(t)
	alice := app.browser()
	aliceID := alice.signup("alice", "a@x.com", "secret")
	alice.createPost("from alice", "body")

	bob := app.browser()
	bobID := bob.signup("bob", "b@x.com", "hunter2")
	bob.createPost("from bob", "body")

	p := app.browser().get("/author/" + idString(aliceID))
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "from alice")
	assert.NotContains(t, p.body, "from bob")

	p = app.browser().get("/author/" + idString(bobID+100))
	assert.Equal(t, http.StatusNotFound, p.status)
}

func TestWithRecover(t *testing.T) {
	h := RequestLogger(WithRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestLoggerKeepsValidID(t *testing.T) {
	const id = "5f0c9a52-8e7b-4f0e-9d3a-2b6f1c4e7a90"
	var seen string
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, seen)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req.Header.Set(requestIDHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "not-a-uuid", seen)
}
