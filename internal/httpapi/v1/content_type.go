package v1

import (
    "net/http"
    "strings"
)

// requireJSON rejects requests whose Content-Type is not application/json (optionally with params) with 415.
func requireJSON(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ct := r.Header.Get("Content-Type")
        // allow charset or other params after ; and case-insensitive match
        mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
        if mime != "application/json" {
            writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported_media_type")
            return
        }
        next.ServeHTTP(w, r)
    })
}
