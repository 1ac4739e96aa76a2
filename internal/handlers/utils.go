package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/variant"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are only logged, the status line is already out.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, ErrorResponse{Error: message})
}

// writeEngineError maps an engine failure to a status code and its
// user-facing reason.
func writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.Error("Request failed: %v", err)
	}

	resp := ErrorResponse{Error: variant.Reason(err)}
	switch {
	case errors.Is(err, variant.ErrAssetNotFound):
		resp.Error = "asset not found"
	case variant.KindOf(err) != variant.KindUnknown:
		resp.Kind = variant.KindOf(err).String()
	}
	writeJSONStatus(w, status, resp)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, variant.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, variant.ErrDisabled):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	switch variant.KindOf(err) {
	case variant.KindSourceMissing:
		return http.StatusNotFound
	case variant.KindInvalidBaseline, variant.KindUnsupportedFormat,
		variant.KindAlphaUnsupported, variant.KindExhausted:
		return http.StatusUnprocessableEntity
	case variant.KindEncoderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// assetID parses the {id} route variable.
func assetID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
