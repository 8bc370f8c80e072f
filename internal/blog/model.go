package blog

import (
	"encoding/json"
	"time"

	"github.com/vango-dev/postline/pkg/state"
)

// Store collections and state namespaces.
const (
	Posts    = "posts"
	Comments = "comments"
)

// Post is a blog post.
type Post struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        int       `json:"id"`
	PostID    int       `json:"postId"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// decodeAll decodes every value of a namespace. Undecodable entries are
// skipped.
func decodeAll[T any](s state.Snapshot, namespace string) []T {
	values := s.Values(namespace)
	out := make([]T, 0, len(values))
	for _, raw := range values {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}
