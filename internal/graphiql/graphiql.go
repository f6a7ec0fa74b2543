// Package graphiql renders the in-browser GraphiQL explorer page. The page
// is a template around CDN-served GraphiQL assets; the adapter treats it as
// an opaque renderer and owns none of the presentation.
package graphiql

import (
	"bytes"
	"encoding/json"
	"html/template"
)

// DefaultVersion is the GraphiQL release fetched from the CDN when the
// adapter is not configured with an explicit one.
const DefaultVersion = "0.11.11"

// Data is what a rendered page embeds: the request the user submitted and,
// when one was produced, the serialized execution result. Result is the
// literal JSON to seed the result pane with, "null" when there is none.
type Data struct {
	Query         string
	Variables     string
	OperationName string
	Result        string
}

// Renderer produces explorer pages for a fixed GraphiQL version.
type Renderer struct {
	version string
	tmpl    *template.Template
}

// New returns a Renderer serving the given GraphiQL version. An empty
// version selects DefaultVersion.
func New(version string) *Renderer {
	if version == "" {
		version = DefaultVersion
	}
	return &Renderer{
		version: version,
		tmpl:    template.Must(template.New("graphiql").Parse(pageTemplate)),
	}
}

// Render returns the HTML page with d embedded as the editor's initial state.
func (r *Renderer) Render(d Data) ([]byte, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Version       string
		Query         template.JS
		Variables     template.JS
		OperationName template.JS
		Result        template.JS
	}{
		Version:       r.version,
		Query:         jsString(d.Query),
		Variables:     jsString(d.Variables),
		OperationName: jsString(d.OperationName),
		Result:        jsLiteral(d.Result),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) template.JS {
	b, _ := json.Marshal(s)
	return template.JS(b)
}

// jsLiteral passes through serialized JSON, defaulting to null.
func jsLiteral(s string) template.JS {
	if s == "" {
		return template.JS("null")
	}
	return template.JS(s)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <title>GraphiQL</title>
  <style>
    html, body { height: 100%; margin: 0; overflow: hidden; width: 100%; }
  </style>
  <link href="//cdn.jsdelivr.net/npm/graphiql@{{.Version}}/graphiql.css" rel="stylesheet" />
  <script src="//cdn.jsdelivr.net/npm/whatwg-fetch@2.0.3/fetch.min.js"></script>
  <script src="//cdn.jsdelivr.net/npm/react@16.2.0/umd/react.production.min.js"></script>
  <script src="//cdn.jsdelivr.net/npm/react-dom@16.2.0/umd/react-dom.production.min.js"></script>
  <script src="//cdn.jsdelivr.net/npm/graphiql@{{.Version}}/graphiql.min.js"></script>
</head>
<body>
  <div id="graphiql">Loading...</div>
  <script>
    function graphQLFetcher(graphQLParams) {
      return fetch(window.location.pathname, {
        method: 'post',
        headers: {
          'Accept': 'application/json',
          'Content-Type': 'application/json'
        },
        body: JSON.stringify(graphQLParams),
        credentials: 'include'
      }).then(function (response) {
        return response.json();
      });
    }
    var initialResult = {{.Result}};
    ReactDOM.render(
      React.createElement(GraphiQL, {
        fetcher: graphQLFetcher,
        query: {{.Query}},
        variables: {{.Variables}},
        operationName: {{.OperationName}},
        response: initialResult === null ? null : JSON.stringify(initialResult, null, 2)
      }),
      document.getElementById('graphiql')
    );
  </script>
</body>
</html>
`
