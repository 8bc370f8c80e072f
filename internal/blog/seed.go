package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/vango-dev/postline/pkg/store"
)

// Seed writes a few demo posts and comments to s.
func Seed(ctx context.Context, s store.Store) error {
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	posts := []Post{
		{ID: 1, Title: "Hello, postline", Author: "ada", Body: "Every page you open here renders on the server first, then stays live.", CreatedAt: base},
		{ID: 2, Title: "Rendering with prefetched data", Author: "grace", Body: "Components declare what they need; the server fetches it all at once before rendering.", CreatedAt: base.Add(48 * time.Hour)},
		{ID: 3, Title: "Live updates without polling", Author: "linus", Body: "Open this blog in two tabs and add a comment in one of them.", CreatedAt: base.Add(96 * time.Hour)},
	}
	comments := []Comment{
		{ID: 1, PostID: 1, Author: "grace", Body: "Welcome!", CreatedAt: base.Add(time.Hour)},
		{ID: 2, PostID: 1, Author: "linus", Body: "Fast first paint.", CreatedAt: base.Add(2 * time.Hour)},
		{ID: 3, PostID: 3, Author: "ada", Body: "It works across tabs.", CreatedAt: base.Add(97 * time.Hour)},
	}

	for _, p := range posts {
		if err := saveJSON(ctx, s, Posts, p.ID, p); err != nil {
			return fmt.Errorf("blog: seed post %d: %w", p.ID, err)
		}
	}
	for _, c := range comments {
		if err := saveJSON(ctx, s, Comments, c.ID, c); err != nil {
			return fmt.Errorf("blog: seed comment %d: %w", c.ID, err)
		}
	}
	return nil
}
