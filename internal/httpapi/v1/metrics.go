package v1

import (
    "net/http"
    "strconv"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/tinoosan/fintrack/internal/telemetry"
)

func metricsHandler() http.Handler {
    return promhttp.Handler()
}

// metricsMiddleware records request counts and latency labelled by the matched route pattern,
// so path parameters do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
        start := time.Now()
        next.ServeHTTP(ww, r)
        route := "unmatched"
        if rc := chi.RouteContext(r.Context()); rc != nil {
            if p := rc.RoutePattern(); p != "" { route = p }
        }
        status := ww.Status()
        if status == 0 { status = http.StatusOK }
        telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
        telemetry.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
    })
}
