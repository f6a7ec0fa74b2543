package engine

// Result is the outcome of running a request document against a schema.
// Invalid means parsing, validation or execution failed; Data is absent in
// that case and the HTTP layer reports the request with status 400.
type Result struct {
	Data    any
	Errors  []error
	Invalid bool
}

// Fail wraps errs as an invalid result. Used for parse and validation
// failures and for errors surfaced by the executor.
func Fail(errs ...error) *Result {
	return &Result{Errors: errs, Invalid: true}
}
