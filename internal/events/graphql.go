package events

import "time"

// GraphQLStart is published before the executor runs an operation, after the
// document parsed and validated.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is published once the executor returns, whether or not the
// outcome carries errors.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}
