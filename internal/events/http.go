// Package events declares the event types published around request handling.
// Subscribers (tracing, logging) attach through the eventbus; the adapter
// itself never logs.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when a request reaches the adapter.
// The context carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published after the response has been written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}
