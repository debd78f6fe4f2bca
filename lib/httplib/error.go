// GraphScope
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package httplib

import (
	"net/http"
	"time"

	"github.com/gravitational/trace"
)

// ErrorDetail is the inner object of the API error envelope.
type ErrorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Path       string `json:"path"`
	Timestamp  string `json:"timestamp"`
}

// ErrorResponse is the JSON envelope returned for every failed request.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// WriteErrorCode writes the API error envelope with an explicit code and
// status.
func WriteErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ReplyJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Path:       r.URL.Path,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}})
}

// WriteError converts err into the API error envelope using trace error
// classes. Handlers with finer-grained codes call WriteErrorCode directly.
// Unclassified errors are reported as opaque internal errors so no internal
// detail leaks to clients.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case trace.IsBadParameter(err):
		WriteErrorCode(w, r, http.StatusBadRequest, "BadRequest", trace.UserMessage(err))
	case trace.IsAccessDenied(err):
		WriteErrorCode(w, r, http.StatusForbidden, "AccessDenied", trace.UserMessage(err))
	case trace.IsNotFound(err):
		WriteErrorCode(w, r, http.StatusNotFound, "NotFound", trace.UserMessage(err))
	case trace.IsLimitExceeded(err):
		WriteErrorCode(w, r, http.StatusTooManyRequests, "TooManyRequests", trace.UserMessage(err))
	case trace.IsConnectionProblem(err):
		WriteErrorCode(w, r, http.StatusBadGateway, "UpstreamUnavailable", trace.UserMessage(err))
	default:
		WriteErrorCode(w, r, http.StatusInternalServerError, "InternalError", "internal server error")
	}
}
