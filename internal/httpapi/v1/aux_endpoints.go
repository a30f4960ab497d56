package v1

import (
    "context"
    "net/http"
    "time"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
    if s.svc.Ready == nil { w.WriteHeader(http.StatusOK); return }
    ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
    defer cancel()
    if err := s.svc.Ready.Ready(ctx); err != nil {
        s.log.Warn("readiness check failed", "err", err)
        w.WriteHeader(http.StatusServiceUnavailable)
        return
    }
    w.WriteHeader(http.StatusOK)
}
