// Package upstream implements an engine.Executor that forwards execution to
// another GraphQL endpoint over HTTP. The adapter still parses and validates
// locally against its own schema; only execution is delegated.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlhttp/internal/engine"
)

const defaultRequestTimeout = 30 * time.Second

// Executor POSTs {query, variables, operationName} to a fixed endpoint and
// maps the JSON response back into an engine result.
type Executor struct {
	url    string
	client *http.Client
	header http.Header
}

type Option func(*Executor)

// WithHTTPClient overrides the default client.
func WithHTTPClient(c *http.Client) Option { return func(e *Executor) { e.client = c } }

// WithHeader adds a header to every forwarded request.
func WithHeader(key, value string) Option {
	return func(e *Executor) { e.header.Set(key, value) }
}

// New returns an Executor forwarding to url.
func New(url string, opts ...Option) *Executor {
	e := &Executor{
		url:    url,
		client: &http.Client{Timeout: defaultRequestTimeout},
		header: http.Header{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type wireRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type wireLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type wireError struct {
	Message   string         `json:"message"`
	Locations []wireLocation `json:"locations"`
	Path      []any          `json:"path"`
}

type wireResponse struct {
	Data   any         `json:"data"`
	Errors []wireError `json:"errors"`
}

func (e *Executor) Execute(ctx context.Context, p engine.Params) (*engine.Result, error) {
	body, err := json.Marshal(wireRequest{
		Query:         p.Query,
		Variables:     p.Variables,
		OperationName: p.OperationName,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range e.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read response: %w", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("upstream: status %d with non-GraphQL body", resp.StatusCode)
	}

	result := &engine.Result{Data: wire.Data}
	for _, we := range wire.Errors {
		result.Errors = append(result.Errors, toEngineError(we))
	}
	if resp.StatusCode != http.StatusOK || (wire.Data == nil && len(wire.Errors) > 0) {
		result.Invalid = true
		result.Data = nil
	}
	return result, nil
}

// toEngineError reconstructs a structured engine error so its locations and
// path survive re-formatting by the adapter.
func toEngineError(we wireError) error {
	ge := &gqlerror.Error{Message: we.Message}
	for _, loc := range we.Locations {
		ge.Locations = append(ge.Locations, gqlerror.Location{Line: loc.Line, Column: loc.Column})
	}
	for _, elem := range we.Path {
		switch v := elem.(type) {
		case string:
			ge.Path = append(ge.Path, ast.PathName(v))
		case float64:
			ge.Path = append(ge.Path, ast.PathIndex(int(v)))
		}
	}
	return ge
}
