package engine

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Location is a line/column position in the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error is the serializable projection of anything that went wrong while
// handling a request. Errors produced by the engine carry Locations and Path;
// everything else is reduced to its message.
type Error struct {
	Message   string     `json:"message"`
	Locations []Location `json:"locations,omitempty"`
	Path      []any      `json:"path,omitempty"`
}

// FormatError projects err into its wire shape. Engine errors
// (*gqlerror.Error) keep their structured location and path info; any other
// error becomes a bare message.
func FormatError(err error) Error {
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		out := Error{Message: ge.Message}
		for _, loc := range ge.Locations {
			out.Locations = append(out.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
		out.Path = formatPath(ge.Path)
		return out
	}
	return Error{Message: err.Error()}
}

func formatPath(path ast.Path) []any {
	if len(path) == 0 {
		return nil
	}
	out := make([]any, len(path))
	for i, elem := range path {
		switch v := elem.(type) {
		case ast.PathName:
			out[i] = string(v)
		case ast.PathIndex:
			out[i] = int(v)
		default:
			out[i] = v
		}
	}
	return out
}
