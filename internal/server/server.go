// Package server implements the GraphQL-over-HTTP endpoint adapter. It
// translates GET/POST requests into engine invocations and engine results
// into JSON responses, optionally serving the GraphiQL explorer to browsers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hanpama/gqlhttp/internal/engine"
	"github.com/hanpama/gqlhttp/internal/eventbus"
	"github.com/hanpama/gqlhttp/internal/events"
	"github.com/hanpama/gqlhttp/internal/graphiql"
	"github.com/hanpama/gqlhttp/internal/language"
	"github.com/hanpama/gqlhttp/internal/reqid"
)

const (
	jsonContentType = "application/json"
	htmlContentType = "text/html; charset=utf-8"
	allowedMethods  = "GET, POST"
)

// Renderer produces the explorer page for a request. The adapter treats the
// page as opaque; presentation of results and errors belongs to the renderer.
type Renderer interface {
	Render(d graphiql.Data) ([]byte, error)
}

// Config is the adapter's construction-time state. It is read-only after New
// returns, which is what makes a Handler safe for concurrent requests.
type Config struct {
	// Schema is the pre-built schema documents are validated against.
	Schema *language.Schema
	// Executor runs validated documents.
	Executor engine.Executor
	// RootValue is passed through to the executor on every request.
	RootValue any
	// ContextFactory derives the executor's context value from the HTTP
	// request. When nil the request itself is the context value.
	ContextFactory func(r *http.Request) any

	// Pretty enables indented, sorted-key JSON responses. A request can
	// also opt in per call with ?pretty.
	Pretty bool
	// GraphiQL enables the in-browser explorer for HTML-preferring clients.
	GraphiQL bool
	// GraphiQLVersion selects the explorer release served from the CDN.
	GraphiQLVersion string
	// Renderer overrides the default explorer renderer.
	Renderer Renderer

	// Timeout sets a request deadline when the incoming context has none.
	// 0 means no default timeout.
	Timeout time.Duration
	// MaxBodyBytes limits the request body. 0 means unlimited.
	MaxBodyBytes int64
	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

type Option func(*Config)

func WithPretty() Option                      { return func(c *Config) { c.Pretty = true } }
func WithGraphiQL(enable bool) Option         { return func(c *Config) { c.GraphiQL = enable } }
func WithGraphiQLVersion(v string) Option     { return func(c *Config) { c.GraphiQLVersion = v } }
func WithRenderer(r Renderer) Option          { return func(c *Config) { c.Renderer = r } }
func WithRootValue(v any) Option              { return func(c *Config) { c.RootValue = v } }
func WithTimeout(d time.Duration) Option      { return func(c *Config) { c.Timeout = d } }
func WithMaxBodyBytes(n int64) Option         { return func(c *Config) { c.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option       { return func(c *Config) { c.CORS.AllowedOrigins = origins } }
func WithContextFactory(f func(r *http.Request) any) Option {
	return func(c *Config) { c.ContextFactory = f }
}

// Handler is the endpoint adapter. All per-request state is local to
// ServeHTTP; the configuration is immutable after New.
type Handler struct {
	cfg Config
}

// New builds a Handler. It fails fast when the schema or executor is absent.
func New(schema *language.Schema, exec engine.Executor, opts ...Option) (*Handler, error) {
	if schema == nil {
		return nil, errors.New("server: a schema is required")
	}
	if exec == nil {
		return nil, errors.New("server: an executor is required")
	}
	cfg := Config{Schema: schema, Executor: exec}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = graphiql.New(cfg.GraphiQLVersion)
	}
	return &Handler{cfg: cfg}, nil
}

// response is the assembled HTTP reply for one request.
type response struct {
	status      int
	contentType string
	body        []byte
	allow       string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions && len(h.cfg.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.cfg.CORS)
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}
	if len(h.cfg.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.cfg.CORS)
	}

	resp := h.handle(ctx, r)
	status = resp.status
	w.Header().Set("Content-Type", resp.contentType)
	if resp.allow != "" {
		w.Header().Set("Allow", resp.allow)
	}
	w.WriteHeader(resp.status)
	if len(resp.body) > 0 {
		_, _ = w.Write(resp.body)
	}
}

// handle runs the request lifecycle and converts any httpError raised along
// the way into the terminal error response shape. The error path always
// carries the Allow header and skips explorer rendering.
func (h *Handler) handle(ctx context.Context, r *http.Request) *response {
	resp, err := h.dispatch(ctx, r)
	if err == nil {
		return resp
	}
	var he *httpError
	if !errors.As(err, &he) {
		he = &httpError{status: http.StatusInternalServerError, message: err.Error()}
	}
	body := h.encodeJSON(r, map[string]any{
		"errors": []engine.Error{engine.FormatError(he)},
	})
	return &response{
		status:      he.status,
		contentType: jsonContentType,
		body:        body,
		allow:       allowedMethods,
	}
}

// dispatch is the linear lifecycle: method gate, body parse, parameter
// extraction, execution, response assembly, explorer render.
func (h *Handler) dispatch(ctx context.Context, r *http.Request) (*response, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return nil, methodNotAllowed("GraphQL only supports GET and POST requests.")
	}

	data, err := h.parseBody(r)
	if err != nil {
		return nil, err
	}

	showGraphiql := h.cfg.GraphiQL && canDisplayGraphiql(r, data)

	params, err := graphqlParams(r, data)
	if err != nil {
		return nil, err
	}

	result, err := h.execute(ctx, r, params, showGraphiql)
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	var payload []byte
	if result != nil {
		out := map[string]any{}
		if len(result.Errors) > 0 {
			formatted := make([]engine.Error, len(result.Errors))
			for i, e := range result.Errors {
				formatted[i] = engine.FormatError(e)
			}
			out["errors"] = formatted
		}
		if result.Invalid {
			status = http.StatusBadRequest
		} else {
			out["data"] = result.Data
		}
		payload = h.encodeJSON(r, out)
	}

	if showGraphiql {
		page, rerr := h.cfg.Renderer.Render(graphiql.Data{
			Query:         params.Query,
			Variables:     serializeVariables(params.Variables),
			OperationName: params.OperationName,
			Result:        string(payload),
		})
		if rerr != nil {
			return nil, fmt.Errorf("render explorer page: %w", rerr)
		}
		// The explorer page owns presentation of errors, so it is always
		// served with status 200.
		return &response{status: http.StatusOK, contentType: htmlContentType, body: page}, nil
	}

	return &response{status: status, contentType: jsonContentType, body: payload}, nil
}

// execute turns parsed parameters into an engine result. A nil result with a
// nil error means the explorer page should be rendered without one. Engine
// failures of any kind come back as an invalid result, never as an error.
func (h *Handler) execute(ctx context.Context, r *http.Request, p params, showGraphiql bool) (*engine.Result, error) {
	if p.Query == "" {
		if showGraphiql {
			return nil, nil
		}
		return nil, badRequest("Must provide query string.")
	}

	doc, err := language.ParseQuery(p.Query)
	if err != nil {
		return engine.Fail(err), nil
	}
	if errs := language.Validate(h.cfg.Schema, doc); len(errs) > 0 {
		return engine.Fail(errs...), nil
	}

	op := doc.Operations.ForName(p.OperationName)
	if r.Method == http.MethodGet && op != nil && op.Operation != language.Query {
		if showGraphiql {
			return nil, nil
		}
		return nil, methodNotAllowed(fmt.Sprintf("Can only perform a %s operation from a POST request.", op.Operation))
	}

	variables := p.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	var contextValue any = r
	if h.cfg.ContextFactory != nil {
		contextValue = h.cfg.ContextFactory(r)
	}

	opType := ""
	if op != nil {
		opType = string(op.Operation)
	}
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{
		Query:         p.Query,
		OperationName: p.OperationName,
		OperationType: opType,
	})

	result, err := h.cfg.Executor.Execute(ctx, engine.Params{
		Document:      doc,
		Query:         p.Query,
		Variables:     variables,
		OperationName: p.OperationName,
		RootValue:     h.cfg.RootValue,
		ContextValue:  contextValue,
	})
	if err != nil {
		result = engine.Fail(err)
	} else if result == nil {
		result = engine.Fail(errors.New("executor returned no result"))
	}

	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         p.Query,
		OperationName: p.OperationName,
		OperationType: opType,
		Errors:        result.Errors,
		Duration:      time.Since(start),
	})
	return result, nil
}

// encodeJSON serializes v compactly, or indented with sorted keys when the
// handler is configured pretty or the request asks for it. Responses are
// built from maps so key order is deterministic either way.
func (h *Handler) encodeJSON(r *http.Request, v any) []byte {
	if h.cfg.Pretty || r.URL.Query().Get("pretty") != "" {
		b, _ := json.MarshalIndent(v, "", "  ")
		return b
	}
	b, _ := json.Marshal(v)
	return b
}

func serializeVariables(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	b, _ := json.MarshalIndent(vars, "", "  ")
	return string(b)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	wildcard := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowed = true
			wildcard = true
		} else if o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
