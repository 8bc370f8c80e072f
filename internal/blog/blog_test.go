package blog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/postline/pkg/prefetch"
	"github.com/vango-dev/postline/pkg/state"
	"github.com/vango-dev/postline/pkg/store"
	"github.com/vango-dev/postline/pkg/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	if err := Seed(context.Background(), s); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

// renderPath runs the route table, resolver and tree renderer for path.
func renderPath(t *testing.T, s store.Store, path string) view.Rendered {
	t.Helper()
	match, err := Routes("test blog").Match(path)
	if err != nil || !match.Matched {
		t.Fatalf("Match(%q) = %+v, %v", path, match, err)
	}
	c := state.New()
	if err := prefetch.New(s).Resolve(context.Background(), match.Components, match.Params, c); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := view.NewTreeRenderer().Render(context.Background(), match.Components, view.Scope{
		Params: match.Params,
		State:  c.Freeze(),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestRoutes(t *testing.T) {
	table := Routes("")

	root, err := table.Match("/")
	if err != nil || root.RedirectTo != "/posts" {
		t.Errorf("Match(/) = %+v, %v", root, err)
	}
	detail, _ := table.Match("/posts/3")
	if got := view.Names(detail.Components); got != "Layout > PostDetail > CommentList" {
		t.Errorf("components = %q", got)
	}
	if bad, _ := table.Match("/posts/abc"); bad.Matched {
		t.Error("non-numeric post id should not match")
	}
}

func TestPostListRendersNewestFirst(t *testing.T) {
	out := renderPath(t, seededStore(t), "/posts")

	first := strings.Index(out.Markup, "Live updates without polling")
	last := strings.Index(out.Markup, "Hello, postline")
	if first < 0 || last < 0 || first > last {
		t.Errorf("posts not newest first:\n%s", out.Markup)
	}
	if !strings.Contains(out.Markup, `<header class="masthead"><a href="/posts">test blog</a></header>`) {
		t.Errorf("layout missing:\n%s", out.Markup)
	}
	if !strings.Contains(out.Markup, "Mar 1, 2024") {
		t.Errorf("dates should be formatted:\n%s", out.Markup)
	}
	if out.Head.Title != "Posts" {
		t.Errorf("Title = %q", out.Head.Title)
	}
}

func TestPostDetailWithComments(t *testing.T) {
	out := renderPath(t, seededStore(t), "/posts/1")

	for _, want := range []string{
		"<h1>Hello, postline</h1>",
		"2 comments",
		"<strong>Grace</strong> Welcome!",
		`data-comment="2"`,
	} {
		if !strings.Contains(out.Markup, want) {
			t.Errorf("markup missing %q:\n%s", want, out.Markup)
		}
	}
	if strings.Contains(out.Markup, "It works across tabs.") {
		t.Error("comments of other posts leaked into the page")
	}
	if out.Head.Title != "Hello, postline" || len(out.Head.Links) != 1 || out.Head.Links[0].Href != "/posts/1" {
		t.Errorf("Head = %+v", out.Head)
	}

	single := renderPath(t, seededStore(t), "/posts/3")
	if !strings.Contains(single.Markup, "<h2>1 comment</h2>") {
		t.Errorf("singular comment heading missing:\n%s", single.Markup)
	}
}

func TestPostDetailEscapesContent(t *testing.T) {
	s := store.NewMemoryStore()
	_ = saveJSON(context.Background(), s, Posts, 1, Post{ID: 1, Title: "<script>x</script>", Body: "a & b"})

	out := renderPath(t, s, "/posts/1")
	if strings.Contains(out.Markup, "<script>x</script>") {
		t.Errorf("title not escaped:\n%s", out.Markup)
	}
	if !strings.Contains(out.Markup, "a &amp; b") {
		t.Errorf("body not escaped:\n%s", out.Markup)
	}
	if !strings.Contains(out.Markup, "0 comments") {
		t.Errorf("empty comment list heading missing:\n%s", out.Markup)
	}
}

func newAPIServer(t *testing.T) (*httptest.Server, *API) {
	t.Helper()
	api := NewAPI(seededStore(t), testLogger())
	api.now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	api.Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, api
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestAPIPosts(t *testing.T) {
	srv, _ := newAPIServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/api/posts", "")
	var posts []Post
	if code != http.StatusOK || json.Unmarshal([]byte(body), &posts) != nil || len(posts) != 3 {
		t.Fatalf("GET /api/posts = %d %s", code, body)
	}

	code, body = do(t, http.MethodPost, srv.URL+"/api/posts", `{"title":" New post ","body":"hi","author":"me"}`)
	var created Post
	if code != http.StatusCreated || json.Unmarshal([]byte(body), &created) != nil {
		t.Fatalf("POST /api/posts = %d %s", code, body)
	}
	if created.ID != 4 || created.Title != "New post" || !created.CreatedAt.Equal(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %+v", created)
	}

	code, body = do(t, http.MethodPut, srv.URL+"/api/posts/4", `{"body":"edited"}`)
	var updated Post
	if code != http.StatusOK || json.Unmarshal([]byte(body), &updated) != nil {
		t.Fatalf("PUT /api/posts/4 = %d %s", code, body)
	}
	if updated.Title != "New post" || updated.Body != "edited" || updated.UpdatedAt.IsZero() {
		t.Errorf("updated = %+v", updated)
	}

	code, body = do(t, http.MethodGet, srv.URL+"/api/posts/4", "")
	if code != http.StatusOK || !strings.Contains(body, `"body":"edited"`) {
		t.Errorf("GET /api/posts/4 = %d %s", code, body)
	}
}

func TestAPIComments(t *testing.T) {
	srv, _ := newAPIServer(t)

	code, body := do(t, http.MethodGet, srv.URL+"/api/posts/1/comments", "")
	var comments []Comment
	if code != http.StatusOK || json.Unmarshal([]byte(body), &comments) != nil || len(comments) != 2 {
		t.Fatalf("GET comments = %d %s", code, body)
	}

	code, body = do(t, http.MethodPost, srv.URL+"/api/posts/2/comments", `{"body":"first!","author":"bob"}`)
	var created Comment
	if code != http.StatusCreated || json.Unmarshal([]byte(body), &created) != nil {
		t.Fatalf("POST comment = %d %s", code, body)
	}
	if created.ID != 4 || created.PostID != 2 {
		t.Errorf("created = %+v", created)
	}

	_, body = do(t, http.MethodGet, srv.URL+"/api/posts/2/comments", "")
	if !strings.Contains(body, "first!") {
		t.Errorf("new comment not listed: %s", body)
	}
}

func TestAPIErrors(t *testing.T) {
	srv, _ := newAPIServer(t)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/posts/99", "", http.StatusNotFound},
		{http.MethodGet, "/api/posts/abc", "", http.StatusBadRequest},
		{http.MethodPost, "/api/posts", `{"body":"no title"}`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/posts", `{"title":`, http.StatusBadRequest},
		{http.MethodPost, "/api/posts", `{"title":"x","extra":1}`, http.StatusBadRequest},
		{http.MethodPut, "/api/posts/1", `{"title":"  "}`, http.StatusUnprocessableEntity},
		{http.MethodPut, "/api/posts/99", `{"title":"x"}`, http.StatusNotFound},
		{http.MethodPost, "/api/posts/1/comments", `{"body":""}`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/posts/99/comments", `{"body":"x"}`, http.StatusNotFound},
		{http.MethodGet, "/api/posts/99/comments", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		code, body := do(t, tt.method, srv.URL+tt.path, tt.body)
		if code != tt.want {
			t.Errorf("%s %s = %d %s, want %d", tt.method, tt.path, code, body, tt.want)
		}
		if !strings.Contains(body, `"error"`) {
			t.Errorf("%s %s body = %s, want JSON error", tt.method, tt.path, body)
		}
	}
}

func TestAPIStoreFailure(t *testing.T) {
	s := store.NewMemoryStore()
	_ = s.Close()
	api := NewAPI(s, testLogger())
	r := chi.NewRouter()
	api.Mount(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "closed") {
		t.Errorf("closed store = %d %s", rec.Code, rec.Body.String())
	}
}
