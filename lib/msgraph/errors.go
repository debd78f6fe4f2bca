package msgraph

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gravitational/trace"
)

type graphErrorResponse struct {
	Error *GraphError `json:"error,omitempty"`
}

// GraphError is the error envelope returned by the Graph API.
type GraphError struct {
	Code       string       `json:"code,omitempty"`
	Message    string       `json:"message,omitempty"`
	InnerError *GraphError  `json:"innerError,omitempty"`
	Details    []GraphError `json:"details,omitempty"`
}

func (g *GraphError) Error() string {
	var parts []string
	if g.Code != "" {
		parts = append(parts, strings.TrimPrefix(g.Code, "Request_"))
	}
	if g.Message != "" {
		parts = append(parts, g.Message)
	}
	return strings.Join(parts, ": ")
}

// readError decodes a Graph error envelope from r, returning nil when the
// body carries none.
func readError(r io.Reader) *GraphError {
	var errResponse graphErrorResponse
	if err := json.NewDecoder(r).Decode(&errResponse); err != nil {
		return nil
	}
	return errResponse.Error
}

// statusError converts an upstream status and optional Graph error envelope
// into a typed error. Anything that is not an addressing problem maps to a
// connection problem so callers surface it as upstream unavailability.
func statusError(code int, graphErr *GraphError) error {
	msg := http.StatusText(code)
	if graphErr != nil {
		msg = graphErr.Error()
	}
	switch code {
	case http.StatusNotFound:
		return trace.NotFound("%s", msg)
	case http.StatusBadRequest:
		return trace.BadParameter("%s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return trace.AccessDenied("%s", msg)
	default:
		return trace.ConnectionProblem(nil, "upstream returned status %d: %s", code, msg)
	}
}
