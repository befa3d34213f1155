package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/c360/i3xbridge/errors"
)

// maxBodySize bounds request bodies; the largest legitimate payload is
// an admin object type with an embedded JSON Schema.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are gone; nothing left to report to the client.
		return
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message, Status: status})
}

// writeError maps the error's classification onto an HTTP status.
// Client-fault classes carry the diagnostic through; server faults get
// a generic body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.IsConflict(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.IsInvalid(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.IsTransient(err):
		writeErrorMessage(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// payload shapes with a diagnostic the caller can act on.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.WrapInvalid(err, "api", "decodeBody", "read request body")
	}
	if len(body) > maxBodySize {
		return errors.WrapInvalid(
			fmt.Errorf("request body exceeds %d bytes", maxBodySize),
			"api", "decodeBody", "read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.WrapInvalid(err, "api", "decodeBody", "parse request body")
	}
	return nil
}
