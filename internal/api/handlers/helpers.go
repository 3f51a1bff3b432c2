package handlers

import (
	"encoding/json"
	"io"
	"listing-distance/internal/platform/obs"
	"log"
	"net/http"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeJSONWith(r, v, func(status int, msg string) {
		writeError(w, r, status, msg)
	})
}

// decodeJSONWith decodes exactly one JSON object from the body and reports
// failures through fail.
func decodeJSONWith(r *http.Request, v any, fail func(status int, msg string)) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		fail(http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		fail(http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

func requestID(r *http.Request) string {
	return obs.RequestID(r.Context())
}
