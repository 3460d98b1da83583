package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"familytrack/internal/core/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// writeError maps err to a status code. Storage and unclassified errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindValidation:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: string(kind)})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: string(kind)})
	case apperr.KindUnauthorized:
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), Code: string(kind)})
	default:
		log.Printf("[api] %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: string(kind)})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: string(apperr.KindValidation)})
}

// queryInt parses an optional integer parameter.
func queryInt(r *http.Request, name string) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
