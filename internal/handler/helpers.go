package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. Unknown fields are
// rejected so a misspelled flag never silently falls back to its default.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryBool extracts a boolean query parameter. Returns false if the parameter
// is missing or not "true"/"1".
func queryBool(r *http.Request, key string) bool {
	val := r.URL.Query().Get(key)
	return val == "true" || val == "1"
}

// stringsToResources converts a list of strings into the resource array
// format: [{"key": "value1"}, {"key": "value2"}, ...].
func stringsToResources(key string, values []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(values))
	for i, v := range values {
		out[i] = map[string]interface{}{key: v}
	}
	return out
}

// writeOpError maps an error from a session operation to a response.
func writeOpError(w http.ResponseWriter, err error, fallbackMsg string) {
	var (
		ve *model.ValidationError
		ce *model.ConnectivityError
		ee *model.ExecutionError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]interface{}{"field": ve.Field})
	case errors.Is(err, config.ErrNotFound), errors.Is(err, session.ErrColumnNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &ee):
		status, msg := classifyDBError(err, fallbackMsg)
		writeError(w, status, msg, map[string]interface{}{"statement": ee.Statement})
	default:
		status, msg := classifyDBError(err, fallbackMsg)
		writeError(w, status, msg)
	}
}

// classifyDBError maps common database errors to appropriate HTTP status codes.
// Returns (httpStatus, cleanMessage).
func classifyDBError(err error, fallbackMsg string) (int, string) {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	// Name collisions → 409 Conflict
	case strings.Contains(lower, "already an object named") ||
		strings.Contains(lower, "already exists") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "violation of unique") ||
		strings.Contains(lower, "column names in each table must be unique"):
		return http.StatusConflict, fallbackMsg + ": " + msg

	// Existing rows block the change → 409 Conflict
	case strings.Contains(lower, "cannot insert the value null") ||
		strings.Contains(lower, "cannot insert null") ||
		strings.Contains(lower, "conversion failed") ||
		strings.Contains(lower, "would be truncated"):
		return http.StatusConflict, fallbackMsg + ": " + msg

	// Object not found → 404
	case strings.Contains(lower, "invalid object name") ||
		strings.Contains(lower, "invalid column name") ||
		strings.Contains(lower, "cannot find the object") ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "is not a constraint"):
		return http.StatusNotFound, fallbackMsg + ": " + msg

	// Foreign key or dependent object problems → 400 Bad Request
	case strings.Contains(lower, "foreign key") ||
		strings.Contains(lower, "is dependent on column") ||
		strings.Contains(lower, "check constraint"):
		return http.StatusBadRequest, fallbackMsg + ": " + msg

	default:
		return http.StatusInternalServerError, fallbackMsg + ": " + msg
	}
}
