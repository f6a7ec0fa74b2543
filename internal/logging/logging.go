// Package logging attaches a structured request log to the event bus.
package logging

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/hanpama/gqlhttp/internal/eventbus"
	"github.com/hanpama/gqlhttp/internal/events"
	"github.com/hanpama/gqlhttp/internal/reqid"
)

// Attach subscribes logger to request and operation events. The returned
// function removes the subscriptions again.
func Attach(logger *log.Logger) (detach func()) {
	unsubHTTP := eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		logger.Info("http request",
			"id", rid,
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"status", e.Status,
			"duration", e.Duration,
		)
	})
	unsubGQL := eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
		rid, _ := reqid.FromContext(ctx)
		logger.Debug("graphql operation",
			"id", rid,
			"operation", e.OperationName,
			"type", e.OperationType,
			"errors", len(e.Errors),
			"duration", e.Duration,
		)
	})
	return func() {
		unsubHTTP()
		unsubGQL()
	}
}
