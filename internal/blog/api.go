package blog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/postline/pkg/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// API serves the JSON endpoints used by the client to create and edit
// posts and comments. Clients announce their own mutations over the live
// relay; the API only persists them.
type API struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewAPI creates an API over s.
func NewAPI(s store.Store, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:  s,
		now:    time.Now,
		logger: logger.With("component", "api"),
	}
}

// Mount registers the API routes under /api.
func (a *API) Mount(r chi.Router) {
	r.Route("/api/posts", func(r chi.Router) {
		r.Get("/", a.listPosts)
		r.Post("/", a.createPost)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getPost)
			r.Put("/", a.updatePost)
			r.Get("/comments", a.listComments)
			r.Post("/comments", a.createComment)
		})
	})
}

type postInput struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Author *string `json:"author"`
}

type commentInput struct {
	Body   string `json:"body"`
	Author string `json:"author"`
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.Fetch(r.Context(), store.Query{Collection: Posts})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeRecords(w, http.StatusOK, recs)
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := a.loadPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	var in postInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required")
		return
	}

	id, err := a.nextID(r.Context(), Posts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	post := Post{ID: id, Title: strings.TrimSpace(*in.Title), CreatedAt: a.now().UTC()}
	if in.Body != nil {
		post.Body = *in.Body
	}
	if in.Author != nil {
		post.Author = *in.Author
	}

	if err := a.save(r.Context(), Posts, post.ID, post); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("post created", "id", post.ID)
	writeJSON(w, http.StatusCreated, post)
}

func (a *API) updatePost(w http.ResponseWriter, r *http.Request) {
	post, err := a.loadPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var in postInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			writeError(w, http.StatusUnprocessableEntity, "title must not be empty")
			return
		}
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Body != nil {
		post.Body = *in.Body
	}
	if in.Author != nil {
		post.Author = *in.Author
	}
	post.UpdatedAt = a.now().UTC()

	if err := a.save(r.Context(), Posts, post.ID, post); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (a *API) listComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.loadPost(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	recs, err := a.store.Fetch(r.Context(), store.Query{
		Collection: Comments,
		Filter:     map[string]string{"postId": id},
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeRecords(w, http.StatusOK, recs)
}

func (a *API) createComment(w http.ResponseWriter, r *http.Request) {
	post, err := a.loadPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var in commentInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Body) == "" {
		writeError(w, http.StatusUnprocessableEntity, "body is required")
		return
	}

	id, err := a.nextID(r.Context(), Comments)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	comment := Comment{ID: id, PostID: post.ID, Body: in.Body, Author: in.Author, CreatedAt: a.now().UTC()}
	if err := a.save(r.Context(), Comments, comment.ID, comment); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// errBadID is returned for non-numeric post IDs.
var errBadID = errors.New("blog: invalid id")

func (a *API) loadPost(ctx context.Context, id string) (Post, error) {
	if _, err := strconv.Atoi(id); err != nil {
		return Post{}, errBadID
	}
	recs, err := a.store.Fetch(ctx, store.Query{Collection: Posts, ID: id})
	if err != nil {
		return Post{}, err
	}
	var post Post
	if err := json.Unmarshal(recs[0].Data, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

func (a *API) nextID(ctx context.Context, collection string) (int, error) {
	s, err := a.store.NextID(ctx, collection)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (a *API) save(ctx context.Context, collection string, id int, v any) error {
	return saveJSON(ctx, a.store, collection, id, v)
}

func saveJSON(ctx context.Context, s store.Store, collection string, id int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Save(ctx, collection, store.Record{ID: strconv.Itoa(id), Data: data})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadID):
		writeError(w, http.StatusBadRequest, "id must be numeric")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.logger.ErrorContext(r.Context(), "api request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeRecords(w http.ResponseWriter, status int, recs []store.Record) {
	out := make([]json.RawMessage, len(recs))
	for i, rec := range recs {
		out[i] = rec.Data
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
