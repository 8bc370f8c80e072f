package blog

import "github.com/vango-dev/postline/pkg/router"

// Routes returns the page routes of the blog.
func Routes(site string) *router.Table {
	layout := Layout{Site: site}

	t := router.NewTable()
	t.Redirect("/", "/posts")
	t.Page("/posts", layout, PostList{})
	t.Page("/posts/:id:int", layout, PostDetail{}, CommentList{})
	return t
}
