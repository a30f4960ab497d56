// Package v1 wires the HTTP surface of the finance tracker.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
    "context"
    "log/slog"
    "net/http"
    "strings"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"

    "github.com/tinoosan/fintrack/internal/service/category"
    "github.com/tinoosan/fintrack/internal/service/collab"
    "github.com/tinoosan/fintrack/internal/service/debt"
    "github.com/tinoosan/fintrack/internal/service/identity"
    "github.com/tinoosan/fintrack/internal/service/transaction"
    "github.com/tinoosan/fintrack/internal/service/wallet"
)

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
    Ready(ctx context.Context) error
}

// Services bundles the service layer the API delegates to.
type Services struct {
    Identity     identity.Service
    Wallets      wallet.Service
    Categories   category.Service
    Transactions transaction.Service
    Debts        debt.Service
    Collab       collab.Service
    // Currency is the single currency every amount is denominated in.
    Currency string
    // Ready is consulted by /readyz when set.
    Ready ReadyChecker
}

// Server wires handlers and middleware using Chi.
type Server struct {
    svc Services
    log *slog.Logger
    rt  *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging and panic recovery.
func New(svc Services, logger *slog.Logger) *Server {
    if logger == nil { logger = slog.Default() }
    svc.Currency = strings.ToUpper(svc.Currency)
    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(requestLogger(logger))
    r.Use(recoverer(logger))
    r.Use(metricsMiddleware)

    s := &Server{svc: svc, log: logger, rt: r}
    s.routes()
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
    // Health and metrics (unversioned)
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Method(http.MethodGet, "/metrics", metricsHandler())

    s.rt.Route("/v1", func(r chi.Router) {
        // Public
        r.With(requireJSON).Post("/auth/signup", s.signUp)
        r.With(requireJSON).Post("/auth/signin", s.signIn)
        r.Get("/dictionary/categories", s.getCategoriesDictionary)

        // Authenticated
        r.Group(func(r chi.Router) {
            r.Use(s.authenticate)
            r.Post("/auth/signout", s.signOut)
            r.Get("/auth/session", s.session)

            r.With(requireJSON).Post("/wallets", s.postWallet)
            r.Get("/wallets", s.listWallets)
            r.Get("/wallets/{id}", s.getWallet)
            r.With(requireJSON).Put("/wallets/{id}/balance", s.putWalletBalance)
            r.Post("/wallets/{id}/reconcile", s.reconcileWallet)
            r.Delete("/wallets/{id}", s.deleteWallet)

            r.With(requireJSON).Post("/categories", s.postCategory)
            r.Get("/categories", s.listCategories)
            r.Delete("/categories/{id}", s.deleteCategory)

            r.With(requireJSON).Post("/transactions", s.postTransaction)
            r.Get("/transactions", s.listTransactions)
            r.Delete("/transactions/{id}", s.deleteTransaction)
            r.Get("/summary", s.getSummary)

            r.With(requireJSON).Post("/debts", s.postDebt)
            r.Get("/debts", s.listDebts)
            r.Get("/debts/{id}", s.getDebt)
            r.With(requireJSON).Patch("/debts/{id}/status", s.patchDebtStatus)
            r.Delete("/debts/{id}", s.deleteDebt)

            r.With(requireJSON).Post("/collaborations", s.postCollaboration)
            r.Get("/collaborations/outgoing", s.outgoingCollaborations)
            r.Get("/collaborations/incoming", s.incomingCollaborations)
            r.Get("/collaborations/viewable", s.viewableOwners)
            r.Post("/collaborations/{id}/accept", s.acceptCollaboration)
            r.Post("/collaborations/{id}/reject", s.rejectCollaboration)
            r.Delete("/collaborations/{id}", s.cancelCollaboration)
        })
    })
}
