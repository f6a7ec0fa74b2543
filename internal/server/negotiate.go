package server

import (
	"mime"
	"strconv"
	"strings"
)

// wantsHTML ranks the Accept header over the fixed preference list
// [application/json, text/html]. HTML wins only when its quality is strictly
// greater than JSON's; ties and a missing header favor JSON.
func wantsHTML(accept string) bool {
	return acceptQuality(accept, "text/html") > acceptQuality(accept, "application/json")
}

// acceptQuality returns the quality value the Accept header assigns to
// target. Among the ranges that match, the most specific one wins
// (exact > type wildcard > full wildcard).
func acceptQuality(accept, target string) float64 {
	targetType, targetSub, _ := strings.Cut(target, "/")

	bestSpec := 0
	bestQ := 0.0
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, mediaParams, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		mt, ms, _ := strings.Cut(mediaType, "/")

		spec := 0
		switch {
		case mt == targetType && ms == targetSub:
			spec = 3
		case mt == targetType && ms == "*":
			spec = 2
		case mt == "*" && ms == "*":
			spec = 1
		default:
			continue
		}

		q := 1.0
		if raw, ok := mediaParams["q"]; ok {
			if parsed, perr := strconv.ParseFloat(raw, 64); perr == nil {
				q = parsed
			}
		}
		if spec > bestSpec {
			bestSpec, bestQ = spec, q
		}
	}
	return bestQ
}
