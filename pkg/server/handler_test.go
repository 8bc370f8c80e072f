package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/postline/pkg/prefetch"
	"github.com/vango-dev/postline/pkg/render"
	"github.com/vango-dev/postline/pkg/router"
	"github.com/vango-dev/postline/pkg/store"
	"github.com/vango-dev/postline/pkg/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type postDetail struct{}

func (postDetail) Name() string { return "PostDetail" }

func (postDetail) Requirement() view.Requirement {
	return view.Requirement{Namespace: "posts", Collection: "posts", IDParam: "id"}
}

func (postDetail) Render(_ context.Context, scope view.Scope) (string, render.Head, error) {
	var post struct {
		Title string `json:"title"`
	}
	if _, err := scope.State.Decode("posts", scope.Params.Get("id"), &post); err != nil {
		return "", render.Head{}, err
	}
	return "<article><h1>" + post.Title + "</h1></article>", render.Head{Title: post.Title}, nil
}

var layout = view.Func("Layout", func(_ context.Context, scope view.Scope) (string, render.Head, error) {
	return "<main>" + scope.Child + "</main>", render.Head{Title: "Blog"}, nil
})

var exploding = view.Func("Exploding", func(context.Context, view.Scope) (string, render.Head, error) {
	panic("kaboom")
})

var failing = view.Func("Failing", func(context.Context, view.Scope) (string, render.Head, error) {
	return "", render.Head{}, errors.New("template missing")
})

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) RenderObserved(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) seen() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

func testHandler(t *testing.T, production bool, obs Observer) *Handler {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.Save(context.Background(), "posts", store.Record{ID: "42", Data: json.RawMessage(`{"id":42,"title":"X"}`)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	table := router.NewTable()
	table.Redirect("/", "/posts/42")
	table.Page("/posts/:id", layout, postDetail{})
	table.Page("/boom", layout, exploding)
	table.Page("/broken", layout, failing)

	return NewHandler(HandlerConfig{
		Routes:    table,
		Prefetch:  prefetch.New(s, prefetch.WithLogger(testLogger())),
		Renderer:  view.NewTreeRenderer(),
		Assembler: render.NewAssembler(render.AssemblerConfig{Production: production}),
		Observer:  obs,
		Logger:    testLogger(),
	})
}

func TestRenderPostDocument(t *testing.T) {
	h := testHandler(t, false, nil)

	resp := h.Render(context.Background(), RenderRequest{Path: "/posts/42"})
	if resp.Outcome != OutcomeRendered || resp.Status != http.StatusOK {
		t.Fatalf("outcome = %v %d, err = %v", resp.Outcome, resp.Status, resp.Err)
	}
	for _, want := range []string{
		`<div id="root"><main><article><h1>X</h1></article></main></div>`,
		`<script>window.__INITIAL_STATE__ = {"posts":{"42":{"id":42,"title":"X"}}};</script>`,
		"<title>X</title>",
		`<link rel="stylesheet" href="/static/main.css">`,
		`<script src="/static/main.js" defer></script>`,
	} {
		if !strings.Contains(resp.Body, want) {
			t.Errorf("document missing %q:\n%s", want, resp.Body)
		}
	}
}

func TestRenderRedirects(t *testing.T) {
	h := testHandler(t, false, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/", "/posts/42"},
		{"/posts/42/", "/posts/42"},
		{"/posts//42?x=1", "/posts/42?x=1"},
	}
	for _, tt := range tests {
		resp := h.Render(context.Background(), RenderRequest{Path: tt.path})
		if resp.Outcome != OutcomeRedirect || resp.Status != http.StatusFound || resp.Location != tt.want {
			t.Errorf("Render(%q) = %v %d %q, want redirect to %q", tt.path, resp.Outcome, resp.Status, resp.Location, tt.want)
		}
		if resp.Body != "" {
			t.Errorf("redirect should render nothing, got %q", resp.Body)
		}
	}
}

func TestRenderNotMatched(t *testing.T) {
	h := testHandler(t, false, nil)
	resp := h.Render(context.Background(), RenderRequest{Path: "/nowhere"})
	if resp.Outcome != OutcomeNotMatched || resp.Body != "" {
		t.Errorf("Render(/nowhere) = %+v", resp)
	}
}

func TestRenderPrefetchFailure(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		h := testHandler(t, false, nil)
		resp := h.Render(context.Background(), RenderRequest{Path: "/posts/99"})

		if resp.Outcome != OutcomeError || resp.Status != http.StatusInternalServerError {
			t.Fatalf("outcome = %v %d", resp.Outcome, resp.Status)
		}
		var pe *PrefetchError
		if !errors.As(resp.Err, &pe) || pe.Component != "PostDetail" {
			t.Fatalf("Err = %v, want *PrefetchError for PostDetail", resp.Err)
		}
		if !errors.Is(resp.Err, store.ErrNotFound) {
			t.Errorf("Err should wrap store.ErrNotFound: %v", resp.Err)
		}
		if !strings.Contains(resp.Body, "window.__INITIAL_STATE__ = {};") {
			t.Errorf("error document must embed empty state:\n%s", resp.Body)
		}
		for _, want := range []string{"[E102] Data prefetch failed", "path:      /posts/99", "component: PostDetail", "stack:", "(*Handler).fail"} {
			if !strings.Contains(resp.Body, want) {
				t.Errorf("development error document missing %q:\n%s", want, resp.Body)
			}
		}
	})

	t.Run("production", func(t *testing.T) {
		h := testHandler(t, true, nil)
		resp := h.Render(context.Background(), RenderRequest{Path: "/posts/99"})

		if resp.Status != http.StatusInternalServerError {
			t.Fatalf("Status = %d", resp.Status)
		}
		if !strings.Contains(resp.Body, "window.__INITIAL_STATE__ = {};") {
			t.Errorf("error document must embed empty state:\n%s", resp.Body)
		}
		if strings.Contains(resp.Body, "E102") || strings.Contains(resp.Body, "PostDetail") {
			t.Errorf("production error document leaks detail:\n%s", resp.Body)
		}
	})
}

func TestRenderFailureLogsCompactError(t *testing.T) {
	var logs strings.Builder
	h := testHandler(t, false, nil)
	h.logger = slog.New(slog.NewTextHandler(&logs, nil))

	h.Render(context.Background(), RenderRequest{Path: "/posts/99"})

	out := logs.String()
	for _, want := range []string{"render failed", "code=E102", "E102: Data prefetch failed path=/posts/99 component=PostDetail"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestPageErrorStacks(t *testing.T) {
	pe := pageError(&PrefetchError{Path: "/posts/1", Component: "PostDetail", Err: errors.New("down")})
	if len(pe.Stack) == 0 || !strings.Contains(pe.Stack[0].Function, "TestPageErrorStacks") {
		t.Errorf("Stack should start at the caller, got %+v", pe.Stack)
	}

	panicked := pageError(&RenderError{Path: "/boom", Panic: "kaboom", Stack: []byte("goroutine 1 [running]:")})
	if len(panicked.Stack) != 0 || panicked.RawStack != "goroutine 1 [running]:" {
		t.Errorf("panic should carry only the recovered stack: %+v", panicked)
	}
}

func TestRenderedStateRoundTrips(t *testing.T) {
	s := store.NewMemoryStore()
	post := `{"id":7,"title":"X","body":"</script><script>alert(1)</script> a\u2028b\u2029c & <!-- d"}`
	if err := s.Save(context.Background(), "posts", store.Record{ID: "7", Data: json.RawMessage(post)}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	table := router.NewTable()
	table.Page("/posts/:id", layout, postDetail{})
	h := NewHandler(HandlerConfig{
		Routes:    table,
		Prefetch:  prefetch.New(s),
		Renderer:  view.NewTreeRenderer(),
		Assembler: render.NewAssembler(render.AssemblerConfig{}),
		Logger:    testLogger(),
	})

	resp := h.Render(context.Background(), RenderRequest{Path: "/posts/7"})
	if resp.Status != http.StatusOK {
		t.Fatalf("Status = %d, err = %v", resp.Status, resp.Err)
	}

	const prefix = "window.__INITIAL_STATE__ = "
	start := strings.Index(resp.Body, prefix)
	if start < 0 {
		t.Fatalf("no state binding:\n%s", resp.Body)
	}
	literal := resp.Body[start+len(prefix):]
	end := strings.Index(literal, ";</script>")
	if end < 0 {
		t.Fatalf("state binding not terminated:\n%s", resp.Body)
	}
	literal = literal[:end]

	var got any
	if err := json.Unmarshal([]byte(literal), &got); err != nil {
		t.Fatalf("embedded state is not JSON: %v\n%s", err, literal)
	}
	var record any
	if err := json.Unmarshal([]byte(post), &record); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"posts": map[string]any{"7": record}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("embedded state = %#v, want %#v", got, want)
	}
	if strings.Count(resp.Body, "</script>") != 2 {
		t.Errorf("state terminated the script element early:\n%s", resp.Body)
	}
}

func TestRenderComponentFailures(t *testing.T) {
	h := testHandler(t, false, nil)

	panicked := h.Render(context.Background(), RenderRequest{Path: "/boom"})
	var re *RenderError
	if !errors.As(panicked.Err, &re) || re.Panic == nil || re.Path != "/boom" {
		t.Fatalf("Err = %#v, want *RenderError with panic", panicked.Err)
	}
	if panicked.Status != http.StatusInternalServerError || !strings.Contains(panicked.Body, "[E103]") || !strings.Contains(panicked.Body, "kaboom") {
		t.Errorf("panic document:\n%s", panicked.Body)
	}
	if !strings.Contains(panicked.Body, "window.__INITIAL_STATE__ = {};") {
		t.Error("panic document must embed empty state")
	}

	failed := h.Render(context.Background(), RenderRequest{Path: "/broken"})
	if !errors.As(failed.Err, &re) || re.Panic != nil || re.Components != "Layout > Failing" {
		t.Fatalf("Err = %#v", failed.Err)
	}
	if !strings.Contains(failed.Body, "template missing") {
		t.Errorf("error document should carry the cause:\n%s", failed.Body)
	}
}

func TestRenderResolutionError(t *testing.T) {
	h := testHandler(t, false, nil)
	resp := h.Render(context.Background(), RenderRequest{Path: `/posts/4\2`})

	var rre *RouteResolutionError
	if !errors.As(resp.Err, &rre) || !errors.Is(resp.Err, router.ErrBackslashInPath) {
		t.Fatalf("Err = %v, want route resolution error", resp.Err)
	}
	if resp.Status != http.StatusInternalServerError || !strings.Contains(resp.Body, "[E101]") {
		t.Errorf("resolution error document = %d\n%s", resp.Status, resp.Body)
	}
}

func TestRenderNotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	h := testHandler(t, false, obs)

	for _, path := range []string{"/posts/42", "/", "/nowhere", "/posts/99"} {
		h.Render(context.Background(), RenderRequest{Path: path})
	}

	got := obs.seen()
	want := []string{"rendered", "redirect", "not_matched", "error"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("outcomes = %v, want %v", got, want)
	}
}

func TestWrapServesHTTP(t *testing.T) {
	h := testHandler(t, false, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "next")
	})
	srv := httptest.NewServer(h.Wrap(next))
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err := client.Get(srv.URL + "/posts/42")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<h1>X</h1>") {
		t.Errorf("GET /posts/42 = %d\n%s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp, err = client.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/posts/42" {
		t.Errorf("GET / = %d Location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
		httptest.NewRequest(http.MethodPost, "/posts/42", nil),
	} {
		rec := httptest.NewRecorder()
		h.Wrap(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot || rec.Body.String() != "next" {
			t.Errorf("%s %s = %d %q, want next handler", req.Method, req.URL.Path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	h.Wrap(next).ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/posts/42", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD = %d with %d body bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	h.Wrap(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/99", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("GET /posts/99 = %d, want 500", rec.Code)
	}
}

func TestNewHandlerRequiresPipeline(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewHandler without Routes should panic")
		}
	}()
	NewHandler(HandlerConfig{})
}

func TestOutcomeString(t *testing.T) {
	if OutcomeNotMatched.String() != "not_matched" || Outcome(99).String() != "unknown" {
		t.Error("unexpected outcome labels")
	}
}
