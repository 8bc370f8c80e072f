package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/postline/pkg/render"
	"github.com/vango-dev/postline/pkg/router"
	"github.com/vango-dev/postline/pkg/state"
	"github.com/vango-dev/postline/pkg/view"
)

// Outcome is the terminal state of one render request.
type Outcome int

const (
	OutcomeRendered Outcome = iota
	OutcomeRedirect
	OutcomeNotMatched
	OutcomeError
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeRendered:
		return "rendered"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeNotMatched:
		return "not_matched"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// RenderRequest is the input to one render.
type RenderRequest struct {
	// Path is the request URI, including any query string.
	Path      string
	Headers   http.Header
	UserAgent string
}

// Response is the result of one render.
type Response struct {
	Outcome Outcome

	// Status is the HTTP status to send. Zero for OutcomeNotMatched.
	Status int

	// Location is the redirect target for OutcomeRedirect.
	Location string

	// Body is the HTML document for OutcomeRendered and OutcomeError.
	Body string

	// Err is the pipeline failure behind OutcomeError.
	Err error
}

// Matcher resolves a request URI to a route. *router.Table satisfies it.
type Matcher interface {
	Match(requestURI string) (router.MatchResult, error)
}

// Prefetcher fills a state container with component data.
// *prefetch.Resolver satisfies it.
type Prefetcher interface {
	Resolve(ctx context.Context, components []view.Component, params view.Params, c *state.Container) error
}

// Observer receives one call per completed render.
// *middleware.Collector satisfies it.
type Observer interface {
	RenderObserved(outcome string, d time.Duration)
}

// HandlerConfig wires the render pipeline.
type HandlerConfig struct {
	Routes    Matcher
	Prefetch  Prefetcher
	Renderer  view.Renderer
	Assembler *render.Assembler

	// Observer is notified of every render. Optional.
	Observer Observer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// TracerName names the tracer for pipeline stage spans.
	// Default: "postline/server".
	TracerName string
}

// Handler is the render orchestrator.
type Handler struct {
	routes    Matcher
	prefetch  Prefetcher
	renderer  view.Renderer
	assembler *render.Assembler
	observer  Observer
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewHandler creates a Handler. Routes, Prefetch and Renderer are required;
// a nil Assembler uses development defaults.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Routes == nil || cfg.Prefetch == nil || cfg.Renderer == nil {
		panic("server: HandlerConfig requires Routes, Prefetch and Renderer")
	}
	if cfg.Assembler == nil {
		cfg.Assembler = render.NewAssembler(render.AssemblerConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerName == "" {
		cfg.TracerName = "postline/server"
	}
	return &Handler{
		routes:    cfg.Routes,
		prefetch:  cfg.Prefetch,
		renderer:  cfg.Renderer,
		assembler: cfg.Assembler,
		observer:  cfg.Observer,
		tracer:    otel.Tracer(cfg.TracerName),
		logger:    cfg.Logger.With("component", "render"),
	}
}

// Wrap returns an http.Handler that renders GET and HEAD requests and
// passes unmatched paths and other methods to next.
func (h *Handler) Wrap(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		resp := h.Render(r.Context(), RenderRequest{
			Path:      r.URL.RequestURI(),
			Headers:   r.Header,
			UserAgent: r.UserAgent(),
		})

		switch resp.Outcome {
		case OutcomeNotMatched:
			next.ServeHTTP(w, r)
		case OutcomeRedirect:
			http.Redirect(w, r, resp.Location, resp.Status)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(resp.Status)
			if r.Method != http.MethodHead {
				_, _ = w.Write([]byte(resp.Body))
			}
		}
	})
}

// Render runs the pipeline for one request. It never panics on component
// failures; every failure becomes an OutcomeError response.
func (h *Handler) Render(ctx context.Context, req RenderRequest) Response {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "render",
		trace.WithAttributes(attribute.String("postline.path", req.Path)),
	)
	defer span.End()

	resp := h.render(ctx, req)

	span.SetAttributes(attribute.String("postline.outcome", resp.Outcome.String()))
	if resp.Err != nil {
		span.RecordError(resp.Err)
		span.SetStatus(codes.Error, resp.Err.Error())
	}
	if h.observer != nil {
		h.observer.RenderObserved(resp.Outcome.String(), time.Since(start))
	}
	return resp
}

func (h *Handler) render(ctx context.Context, req RenderRequest) Response {
	match, err := h.match(ctx, req.Path)
	if err != nil {
		return h.fail(ctx, req, &RouteResolutionError{Path: req.Path, Err: err})
	}
	if match.RedirectTo != "" {
		h.logger.Debug("redirect", "path", req.Path, "to", match.RedirectTo)
		return Response{Outcome: OutcomeRedirect, Status: http.StatusFound, Location: match.RedirectTo}
	}
	if !match.Matched {
		return Response{Outcome: OutcomeNotMatched}
	}

	container := state.New()
	if err := h.resolve(ctx, match, container); err != nil {
		return h.fail(ctx, req, newPrefetchError(req.Path, err))
	}
	snapshot := container.Freeze()

	rendered, err := h.renderComponents(ctx, match, snapshot)
	if err != nil {
		if re, ok := err.(*RenderError); ok {
			re.Path = req.Path
		}
		return h.fail(ctx, req, err)
	}

	_, span := h.tracer.Start(ctx, "render.assemble")
	body, err := h.assembler.Assemble(render.PageData{
		Markup: rendered.Markup,
		Head:   rendered.Head,
		State:  snapshot,
	})
	span.End()
	if err != nil {
		return h.fail(ctx, req, &RenderError{Path: req.Path, Components: view.Names(match.Components), Err: err})
	}

	h.logger.Debug("page rendered", "path", req.Path, "components", view.Names(match.Components))
	return Response{Outcome: OutcomeRendered, Status: http.StatusOK, Body: body}
}

func (h *Handler) match(ctx context.Context, path string) (router.MatchResult, error) {
	_, span := h.tracer.Start(ctx, "render.match")
	defer span.End()
	return h.routes.Match(path)
}

func (h *Handler) resolve(ctx context.Context, match router.MatchResult, c *state.Container) error {
	ctx, span := h.tracer.Start(ctx, "render.prefetch")
	defer span.End()
	err := h.prefetch.Resolve(ctx, match.Components, match.Params, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// renderComponents runs the view renderer, converting a panic into a
// *RenderError.
func (h *Handler) renderComponents(ctx context.Context, match router.MatchResult, snapshot state.Snapshot) (out view.Rendered, err error) {
	ctx, span := h.tracer.Start(ctx, "render.components")
	defer span.End()

	names := view.Names(match.Components)
	defer func() {
		if p := recover(); p != nil {
			err = &RenderError{Components: names, Panic: p, Stack: debug.Stack()}
		}
	}()

	out, err = h.renderer.Render(ctx, match.Components, view.Scope{
		Params: match.Params,
		State:  snapshot,
	})
	if err != nil {
		return view.Rendered{}, &RenderError{Components: names, Err: err}
	}
	return out, nil
}

// fail builds the error document. The state embedded in it is always the
// empty snapshot; detail is only included outside production.
func (h *Handler) fail(ctx context.Context, req RenderRequest, err error) Response {
	pe := pageError(err)
	h.logger.ErrorContext(ctx, "render failed",
		"path", req.Path,
		"code", pe.Code,
		"error", pe.FormatCompact(),
	)

	production := h.assembler.Production()
	var detail string
	if !production {
		detail = pe.Format()
	}
	page := render.ErrorPage(production, http.StatusInternalServerError, detail)
	page.State = state.Empty()

	body, assembleErr := h.assembler.Assemble(page)
	if assembleErr != nil {
		h.logger.ErrorContext(ctx, "error page assembly failed", "error", assembleErr)
		body = fmt.Sprintf("<!DOCTYPE html>\n<title>%d</title>\n<h1>%s</h1>\n",
			http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}

	return Response{
		Outcome: OutcomeError,
		Status:  http.StatusInternalServerError,
		Body:    body,
		Err:     err,
	}
}
