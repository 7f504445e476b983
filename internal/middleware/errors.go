package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the same error body shape the API handlers use.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"kind":    kind,
		"message": message,
	})
}
