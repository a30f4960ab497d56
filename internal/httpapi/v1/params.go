package v1

import (
    "net/http"
    "strconv"
    "time"

    chi "github.com/go-chi/chi/v5"
    "github.com/google/uuid"
)

// pathID parses the {id} route parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
    id, err := uuid.Parse(chi.URLParam(r, "id"))
    if err != nil { badRequest(w, "invalid id"); return uuid.Nil, false }
    return id, true
}

// ownerParam reads ?owner_id=, defaulting to the caller. Access is checked by the service layer.
func ownerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
    raw := r.URL.Query().Get("owner_id")
    if raw == "" { return viewer(r).ID, true }
    id, err := uuid.Parse(raw)
    if err != nil { badRequest(w, "invalid owner_id"); return uuid.Nil, false }
    return id, true
}

// optionalUUID parses an optional UUID query parameter.
func optionalUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
    raw := r.URL.Query().Get(name)
    if raw == "" { return nil, true }
    id, err := uuid.Parse(raw)
    if err != nil { badRequest(w, "invalid "+name); return nil, false }
    return &id, true
}

// optionalDate accepts RFC3339 or YYYY-MM-DD.
func optionalDate(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
    raw := r.URL.Query().Get(name)
    if raw == "" { return nil, true }
    if t, err := time.Parse(time.RFC3339, raw); err == nil { tt := t.UTC(); return &tt, true }
    if t, err := time.Parse(time.DateOnly, raw); err == nil { return &t, true }
    badRequest(w, "invalid "+name)
    return nil, false
}

// optionalInt parses an optional integer query parameter; absent means 0.
func optionalInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
    raw := r.URL.Query().Get(name)
    if raw == "" { return 0, true }
    n, err := strconv.Atoi(raw)
    if err != nil { badRequest(w, "invalid "+name); return 0, false }
    return n, true
}
