// Package router maps request paths to the view components of a page.
//
// Routes live in a static Table built at startup:
//
//	t := router.NewTable()
//	t.Redirect("/", "/posts")
//	t.Page("/posts", Layout, PostList)
//	t.Page("/posts/:id", Layout, PostDetail, CommentList)
//
// Match canonicalizes the request path first. Non-canonical paths such as
// "/posts/" or "/posts//42" redirect to their canonical form, and malformed
// paths fail with a *ResolutionError.
//
// Segments are matched static first, then ":param", then "*catchall".
// Parameters may be typed with ":id:int" or ":id:uuid"; a value of the wrong
// type does not match.
package router
