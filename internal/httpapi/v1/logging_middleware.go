package v1

import (
    "context"
    "log/slog"
    "net/http"
    "runtime/debug"
    "time"

    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/google/uuid"
)

// requestInfo is filled in by inner middleware (authenticate) and read back by requestLogger.
type requestInfo struct{ userID uuid.UUID }

func infoFrom(ctx context.Context) *requestInfo {
    ri, _ := ctx.Value(ctxKeyRequestInfo).(*requestInfo)
    return ri
}

// requestLogger logs basic request info at INFO, and server errors at ERROR.
func requestLogger(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()

            reqID := chimw.GetReqID(r.Context())
            l.Debug("request started", "req_id", reqID, "method", r.Method, "path", r.URL.Path)

            ri := &requestInfo{}
            next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestInfo, ri)))

            level := slog.LevelInfo
            if ww.Status() >= http.StatusInternalServerError { level = slog.LevelError }
            attrs := []any{
                "req_id", reqID,
                "method", r.Method,
                "path", r.URL.Path,
                "status", ww.Status(),
                "bytes", ww.BytesWritten(),
                "duration", time.Since(start).String(),
            }
            if ri.userID != uuid.Nil { attrs = append(attrs, "user_id", ri.userID) }
            l.Log(r.Context(), level, "request complete", attrs...)
        })
    }
}

// recoverer logs panics as ERROR and returns 500.
func recoverer(l *slog.Logger) func(next http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            defer func() {
                if rec := recover(); rec != nil {
                    reqID := chimw.GetReqID(r.Context())
                    l.Error("panic", "req_id", reqID, "err", rec, "stack", string(debug.Stack()))
                    writeErr(w, http.StatusInternalServerError, "internal error", "internal")
                }
            }()
            next.ServeHTTP(w, r)
        })
    }
}
