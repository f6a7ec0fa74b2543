package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hanpama/gqlhttp/internal/engine"
	"github.com/hanpama/gqlhttp/internal/language"
)

const testSDL = `
type Query {
  hello: String
}
type Mutation {
  setHello(value: String): String
}
`

// helloExecutor resolves { hello } to "world" and records the params it saw.
func helloExecutor(captured *engine.Params) engine.Executor {
	return engine.ExecutorFunc(func(ctx context.Context, p engine.Params) (*engine.Result, error) {
		if captured != nil {
			*captured = p
		}
		return &engine.Result{Data: map[string]any{"hello": "world"}}, nil
	})
}

func newTestHandler(t *testing.T, exec engine.Executor, opts ...Option) *Handler {
	t.Helper()
	schema, err := language.LoadSchema("test", testSDL)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	h, err := New(schema, exec, opts...)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func postJSON(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewRequiresSchemaAndExecutor(t *testing.T) {
	schema, err := language.LoadSchema("test", testSDL)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := New(nil, helloExecutor(nil)); err == nil {
		t.Fatalf("expected error for nil schema")
	}
	if _, err := New(schema, nil); err == nil {
		t.Fatalf("expected error for nil executor")
	}
}

func TestUnsupportedMethods(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	for _, method := range []string{"PUT", "DELETE", "PATCH"} {
		req := httptest.NewRequest(method, "/graphql", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: status %d", method, w.Code)
		}
		if got := w.Header().Get("Allow"); got != "GET, POST" {
			t.Fatalf("%s: Allow header %q", method, got)
		}
		var body struct {
			Errors []engine.Error `json:"errors"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: body: %v", method, err)
		}
		if len(body.Errors) != 1 || body.Errors[0].Message != "GraphQL only supports GET and POST requests." {
			t.Fatalf("%s: errors %+v", method, body.Errors)
		}
	}
}

func TestPostJSONQuery(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	w := postJSON(h, `{"query": "{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type %q", got)
	}
	if w.Body.String() != `{"data":{"hello":"world"}}` {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestPostInvalidJSONBody(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	w := postJSON(h, `not valid json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if w.Body.String() != `{"errors":[{"message":"POST body sent invalid JSON."}]}` {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestPostNonObjectJSONBody(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	for _, body := range []string{`null`, `[1,2]`, `"query"`} {
		w := postJSON(h, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d", body, w.Code)
		}
	}
}

func TestInvalidVariablesJSON(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	req := httptest.NewRequest("GET", "/graphql?query="+url.QueryEscape("{ hello }")+"&variables=not-json", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Variables are invalid JSON.") {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestVariablesPassedToExecutor(t *testing.T) {
	var captured engine.Params
	h := newTestHandler(t, helloExecutor(&captured))

	q := url.Values{}
	q.Set("query", "{ hello }")
	q.Set("variables", `{"name":"world","count":3}`)
	req := httptest.NewRequest("GET", "/graphql?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if captured.Variables["name"] != "world" {
		t.Fatalf("variables %+v", captured.Variables)
	}
	if captured.Query != "{ hello }" {
		t.Fatalf("query %q", captured.Query)
	}
	if captured.Document == nil {
		t.Fatalf("document not passed")
	}
}

func TestVariablesDefaultToEmptyMap(t *testing.T) {
	var captured engine.Params
	h := newTestHandler(t, helloExecutor(&captured))
	w := postJSON(h, `{"query": "{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured.Variables == nil {
		t.Fatalf("variables should be an empty map, not nil")
	}
}

func TestQueryStringTakesPrecedenceOverBody(t *testing.T) {
	var captured engine.Params
	h := newTestHandler(t, helloExecutor(&captured))
	req := httptest.NewRequest("POST", "/graphql?operationName=FromQS",
		strings.NewReader(`{"query": "query FromQS { hello } query FromBody { hello }", "operationName": "FromBody"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if captured.OperationName != "FromQS" {
		t.Fatalf("operationName %q", captured.OperationName)
	}
}

func TestGraphQLContentType(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{ hello }`))
	req.Header.Set("Content-Type", "application/graphql")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"data":{"hello":"world"}}` {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestFormURLEncodedBody(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	form := url.Values{}
	form.Set("query", "{ hello }")
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestMultipartFormBody(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("query", "{ hello }"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()
	req := httptest.NewRequest("POST", "/graphql", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestUnknownContentTypeIgnoresBody(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	req := httptest.NewRequest("POST", "/graphql?query="+url.QueryEscape("{ hello }"), strings.NewReader("ignored"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestMissingQuery(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	w := postJSON(h, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Must provide query string.") {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestParseErrorBecomesInvalidResult(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	w := postJSON(h, `{"query": "{ hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Errors []engine.Error `json:"errors"`
		Data   any            `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(body.Errors) != 1 {
		t.Fatalf("errors %+v", body.Errors)
	}
	if len(body.Errors[0].Locations) == 0 {
		t.Fatalf("parse error should carry locations: %+v", body.Errors[0])
	}
	if body.Data != nil {
		t.Fatalf("data must be omitted on invalid result")
	}
}

func TestValidationErrorsSkipExecution(t *testing.T) {
	executed := false
	exec := engine.ExecutorFunc(func(ctx context.Context, p engine.Params) (*engine.Result, error) {
		executed = true
		return &engine.Result{}, nil
	})
	h := newTestHandler(t, exec)
	w := postJSON(h, `{"query": "{ nope }"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if executed {
		t.Fatalf("executor must not run for invalid documents")
	}
}

func TestGetMutationRefused(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	q := url.Values{}
	q.Set("query", `mutation { setHello(value: "x") }`)
	req := httptest.NewRequest("GET", "/graphql?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Can only perform a mutation operation from a POST request.") {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestPostMutationAllowed(t *testing.T) {
	exec := engine.ExecutorFunc(func(ctx context.Context, p engine.Params) (*engine.Result, error) {
		return &engine.Result{Data: map[string]any{"setHello": "x"}}, nil
	})
	h := newTestHandler(t, exec)
	w := postJSON(h, `{"query": "mutation { setHello(value: \"x\") }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestExecutorErrorBecomesInvalidResult(t *testing.T) {
	exec := engine.ExecutorFunc(func(ctx context.Context, p engine.Params) (*engine.Result, error) {
		return nil, context.DeadlineExceeded
	})
	h := newTestHandler(t, exec)
	w := postJSON(h, `{"query": "{ hello }"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "context deadline exceeded") {
		t.Fatalf("body %q", w.Body.String())
	}
}

func TestPrettyPrinting(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))

	req := httptest.NewRequest("GET", "/graphql?query="+url.QueryEscape("{ hello }")+"&pretty=1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	want := "{\n  \"data\": {\n    \"hello\": \"world\"\n  }\n}"
	if w.Body.String() != want {
		t.Fatalf("pretty body %q", w.Body.String())
	}

	// Without the flag the body is compact.
	req = httptest.NewRequest("GET", "/graphql?query="+url.QueryEscape("{ hello }"), nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Body.String() != `{"data":{"hello":"world"}}` {
		t.Fatalf("compact body %q", w.Body.String())
	}
}

func TestPrettyOption(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil), WithPretty())
	w := postJSON(h, `{"query": "{ hello }"}`)
	if !strings.Contains(w.Body.String(), "\n  \"data\"") {
		t.Fatalf("body not indented: %q", w.Body.String())
	}
}

func TestIdempotentResponses(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil))
	first := postJSON(h, `{"query": "{ hello }"}`)
	second := postJSON(h, `{"query": "{ hello }"}`)
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("bodies differ: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestContextFactory(t *testing.T) {
	var captured engine.Params
	h := newTestHandler(t, helloExecutor(&captured), WithContextFactory(func(r *http.Request) any {
		return r.Header.Get("X-User")
	}))
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query": "{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured.ContextValue != "alice" {
		t.Fatalf("context value %v", captured.ContextValue)
	}
}

func TestRootValuePassedThrough(t *testing.T) {
	var captured engine.Params
	root := map[string]any{"root": true}
	h := newTestHandler(t, helloExecutor(&captured), WithRootValue(root))
	postJSON(h, `{"query": "{ hello }"}`)
	if captured.RootValue == nil {
		t.Fatalf("root value not passed")
	}
}

func TestTimeoutAppliesDeadline(t *testing.T) {
	var hadDeadline bool
	exec := engine.ExecutorFunc(func(ctx context.Context, p engine.Params) (*engine.Result, error) {
		_, hadDeadline = ctx.Deadline()
		return &engine.Result{Data: map[string]any{"hello": "world"}}, nil
	})
	h := newTestHandler(t, exec, WithTimeout(time.Second))
	w := postJSON(h, `{"query": "{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !hadDeadline {
		t.Fatalf("executor context should carry a deadline")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil), WithMaxBodyBytes(10))
	w := postJSON(h, `{"query": "{ hello }"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status %d", w.Code)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, helloExecutor(nil), WithCORS("*"))

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}
