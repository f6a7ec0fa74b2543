// Package engine defines the seam between the HTTP adapter and the query
// execution engine. The adapter parses and validates request documents with
// gqlparser and then hands them to an Executor; it never resolves fields
// itself.
package engine

import (
	"context"

	"github.com/hanpama/gqlhttp/internal/language"
)

// Params carries one execution request. Document is the parsed and validated
// form of Query; both are provided so executors that forward the request
// elsewhere do not need to re-render the source text.
type Params struct {
	Document      *language.QueryDocument
	Query         string
	Variables     map[string]any
	OperationName string

	// RootValue is the configured top-level resolution value.
	RootValue any
	// ContextValue is derived from the HTTP request by the adapter's
	// context factory and passed through untouched.
	ContextValue any
}

// Executor runs a validated document. Implementations return an invalid
// Result (or an error, which the adapter converts to one) on failure; they
// must not panic across this boundary.
type Executor interface {
	Execute(ctx context.Context, p Params) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, p Params) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, p Params) (*Result, error) {
	return f(ctx, p)
}
