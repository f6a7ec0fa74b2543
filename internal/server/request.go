package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// httpError is one of the four client-facing failure conditions that
// short-circuit to the terminal error response. Engine failures never take
// this path; they travel inside an invalid result instead.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(message string) *httpError {
	return &httpError{status: http.StatusBadRequest, message: message}
}

func methodNotAllowed(message string) *httpError {
	return &httpError{status: http.StatusMethodNotAllowed, message: message}
}

const errBodyTooLarge = "Request body is too large."

// maxMultipartMemory bounds the in-memory portion of multipart parsing.
const maxMultipartMemory = 8 << 20

// parseBody derives a parameter map from the request body, selecting a
// strategy by media type. Unknown media types yield an empty map rather than
// an error; the missing-query check happens later.
func (h *Handler) parseBody(r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/graphql":
		body, err := h.readBody(r)
		if err != nil {
			return nil, err
		}
		return map[string]any{"query": string(body)}, nil

	case "application/json":
		body, err := h.readBody(r)
		if err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil || data == nil {
			return nil, badRequest("POST body sent invalid JSON.")
		}
		return data, nil

	case "application/x-www-form-urlencoded":
		body, err := h.readBody(r)
		if err != nil {
			return nil, err
		}
		form, perr := url.ParseQuery(string(body))
		if perr != nil {
			return nil, badRequest("POST body sent invalid form data.")
		}
		return formToMap(form), nil

	case "multipart/form-data":
		if h.cfg.MaxBodyBytes > 0 {
			body, err := h.readBody(r)
			if err != nil {
				return nil, err
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, badRequest("POST body sent invalid form data.")
		}
		return formToMap(r.MultipartForm.Value), nil
	}

	return map[string]any{}, nil
}

// readBody reads the request body, enforcing the configured size limit.
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if h.cfg.MaxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, badRequest("Unable to read request body.")
	}
	if h.cfg.MaxBodyBytes > 0 && int64(len(body)) > h.cfg.MaxBodyBytes {
		return nil, &httpError{status: http.StatusRequestEntityTooLarge, message: errBodyTooLarge}
	}
	return body, nil
}

func formToMap(form map[string][]string) map[string]any {
	data := make(map[string]any, len(form))
	for key, values := range form {
		if len(values) > 0 {
			data[key] = values[0]
		} else {
			data[key] = ""
		}
	}
	return data
}

// params are the extracted GraphQL request parameters, each resolved as
// query-string value first, body value second.
type params struct {
	Query         string
	Variables     map[string]any
	OperationName string
}

func graphqlParams(r *http.Request, data map[string]any) (params, error) {
	qs := r.URL.Query()

	p := params{
		Query:         firstOf(qs.Get("query"), stringValue(data["query"])),
		OperationName: firstOf(qs.Get("operationName"), stringValue(data["operationName"])),
	}

	var variables any = qs.Get("variables")
	if variables == "" {
		variables = data["variables"]
	}
	switch v := variables.(type) {
	case string:
		if v != "" {
			if err := json.Unmarshal([]byte(v), &p.Variables); err != nil {
				return params{}, badRequest("Variables are invalid JSON.")
			}
		}
	case map[string]any:
		p.Variables = v
	}

	return p, nil
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// canDisplayGraphiql reports whether the request should get the explorer
// page: no explicit raw override, and content negotiation preferring HTML
// strictly over JSON.
func canDisplayGraphiql(r *http.Request, data map[string]any) bool {
	if r.URL.Query().Has("raw") {
		return false
	}
	if _, ok := data["raw"]; ok {
		return false
	}
	return wantsHTML(r.Header.Get("Accept"))
}
