// Package blog is the demo application served by postline: a list of
// posts, a post page with its comments, and the JSON API the client uses
// to create and edit them.
package blog
