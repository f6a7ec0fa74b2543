// Package language is a thin seam over gqlparser: schema loading, query
// parsing and validation for the HTTP adapter. Execution lives elsewhere.
package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// LoadSchema builds an executable schema from SDL.
func LoadSchema(name, sdl string) (*Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// ParseQuery parses a request document. The returned error, if any, is a
// *gqlerror.Error carrying source locations.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "GraphQL request", Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate runs the spec validation rules against doc. The result is a slice
// of engine errors, empty when the document is valid.
func Validate(schema *Schema, doc *QueryDocument) []error {
	list := validator.Validate(schema, doc)
	if len(list) == 0 {
		return nil
	}
	errs := make([]error, len(list))
	for i, e := range list {
		errs[i] = e
	}
	return errs
}
