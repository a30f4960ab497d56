package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/tinoosan/fintrack/internal/httpapi/v1"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().Bool("dev-seed", false, "create a demo user with a wallet and a few transactions")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if cfg.Auth.SecretGenerated {
		logger.Warn("auth.jwt_secret not set; using a random secret, sessions will not survive a restart")
	}
	st, closeFn, err := openBackend(ctx, cfg.Database, logger)
	if err != nil { return err }
	defer closeFn()

	svc, err := buildServices(st, cfg, logger)
	if err != nil { return err }

	seed, _ := cmd.Flags().GetBool("dev-seed")
	if seed || cfg.DevSeed {
		if err := devSeed(ctx, svc, cfg.Currency, cmd.OutOrStdout()); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(svc, logger).Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fintrack listening", "addr", srv.Addr, "currency", cfg.Currency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
