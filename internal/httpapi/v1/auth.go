package v1

import (
    "context"
    "net/http"
    "strings"

    "github.com/tinoosan/fintrack/internal/ledger"
)

type ctxKey string

const (
    ctxKeyIdentity    ctxKey = "identity"
    ctxKeyToken       ctxKey = "token"
    ctxKeyRequestInfo ctxKey = "requestInfo"
)

func parseBearerToken(r *http.Request) (string, bool) {
    h := r.Header.Get("Authorization")
    if h == "" { return "", false }
    if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") { return "", false }
    tok := strings.TrimSpace(h[len("Bearer "):])
    return tok, tok != ""
}

// authenticate enforces Authorization: Bearer <session token> and stores the caller's identity in the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        tok, ok := parseBearerToken(r)
        if !ok { writeErr(w, http.StatusUnauthorized, "missing bearer token", "unauthorized"); return }
        id, err := s.svc.Identity.CurrentSession(r.Context(), tok)
        if err != nil { s.writeServiceErr(w, r, err); return }
        if ri := infoFrom(r.Context()); ri != nil { ri.userID = id.ID }
        ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
        ctx = context.WithValue(ctx, ctxKeyToken, tok)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

// viewer returns the authenticated identity. Only valid behind authenticate.
func viewer(r *http.Request) ledger.Identity {
    id, _ := r.Context().Value(ctxKeyIdentity).(ledger.Identity)
    return id
}

// POST /v1/auth/signup
func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
    var req credentialsRequest
    if !decodeJSON(w, r, &req) { return }
    id, err := s.svc.Identity.SignUp(r.Context(), req.Email, req.Password)
    if err != nil { s.writeServiceErr(w, r, err); return }
    // new users start with the curated categories; failure here is not fatal for signup
    if s.svc.Categories != nil {
        if _, err := s.svc.Categories.EnsureDefaults(r.Context(), id.ID); err != nil {
            s.log.Warn("default categories not created", "user_id", id.ID, "err", err)
        }
    }
    toJSON(w, http.StatusCreated, id)
}

// POST /v1/auth/signin
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
    var req credentialsRequest
    if !decodeJSON(w, r, &req) { return }
    sess, err := s.svc.Identity.SignIn(r.Context(), req.Email, req.Password)
    if err != nil { s.writeServiceErr(w, r, err); return }
    toJSON(w, http.StatusOK, sess)
}

// POST /v1/auth/signout
func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
    tok, _ := r.Context().Value(ctxKeyToken).(string)
    if err := s.svc.Identity.SignOut(r.Context(), tok); err != nil { s.writeServiceErr(w, r, err); return }
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/auth/session
func (s *Server) session(w http.ResponseWriter, r *http.Request) {
    toJSON(w, http.StatusOK, viewer(r))
}
