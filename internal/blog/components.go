package blog

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/sprig/v3"

	"github.com/vango-dev/postline/pkg/render"
	"github.com/vango-dev/postline/pkg/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("blog").Funcs(sprig.FuncMap()).ParseFS(templateFS, "templates/*.html"),
)

func execute(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Layout is the outermost component of every page.
type Layout struct {
	Site string
}

func (Layout) Name() string { return "Layout" }

func (l Layout) Render(_ context.Context, scope view.Scope) (string, render.Head, error) {
	site := l.Site
	if site == "" {
		site = "postline"
	}
	markup, err := execute("layout.html", map[string]any{
		"Site":  site,
		"Child": template.HTML(scope.Child),
	})
	head := render.Head{
		Title: site,
		Meta:  []render.MetaTag{{Name: "description", Content: "A live-updating blog"}},
	}
	return markup, head, err
}

// PostList shows every post, newest first.
type PostList struct{}

func (PostList) Name() string { return "PostList" }

func (PostList) Requirement() view.Requirement {
	return view.Requirement{Namespace: Posts, Collection: Posts}
}

func (PostList) Render(_ context.Context, scope view.Scope) (string, render.Head, error) {
	posts := decodeAll[Post](scope.State, Posts)
	slices.Reverse(posts)
	markup, err := execute("post_list.html", map[string]any{"Posts": posts})
	return markup, render.Head{Title: "Posts"}, err
}

// PostDetail shows the post selected by the :id route parameter.
type PostDetail struct{}

func (PostDetail) Name() string { return "PostDetail" }

func (PostDetail) Requirement() view.Requirement {
	return view.Requirement{Namespace: Posts, Collection: Posts, IDParam: "id"}
}

func (PostDetail) Render(_ context.Context, scope view.Scope) (string, render.Head, error) {
	var post Post
	ok, err := scope.State.Decode(Posts, scope.Params.Get("id"), &post)
	if err != nil {
		return "", render.Head{}, fmt.Errorf("blog: decode post: %w", err)
	}
	if !ok {
		return "", render.Head{}, fmt.Errorf("blog: post %q not in state", scope.Params.Get("id"))
	}

	markup, err := execute("post_detail.html", map[string]any{
		"Post":  post,
		"Child": template.HTML(scope.Child),
	})
	head := render.Head{
		Title: post.Title,
		Meta:  []render.MetaTag{{Property: "og:title", Content: post.Title}},
		Links: []render.LinkTag{{Rel: "canonical", Href: "/posts/" + strconv.Itoa(post.ID)}},
	}
	return markup, head, err
}

// CommentList shows the comments of the post selected by :id.
type CommentList struct{}

func (CommentList) Name() string { return "CommentList" }

func (CommentList) Requirement() view.Requirement {
	return view.Requirement{
		Namespace:    Comments,
		Collection:   Comments,
		FilterParams: map[string]string{"postId": "id"},
	}
}

func (CommentList) Render(_ context.Context, scope view.Scope) (string, render.Head, error) {
	markup, err := execute("comment_list.html", map[string]any{
		"PostID":   scope.Params.Get("id"),
		"Comments": decodeAll[Comment](scope.State, Comments),
	})
	return markup, render.Head{}, err
}
