package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alovak/cardflow-gateway/internal/banksim"
	"github.com/alovak/cardflow-gateway/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func bankSimulatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank-simulator",
		Short: "Run a local acquiring bank that authorizes by the card's last digit",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = "info"
			}

			logger, err := newLogger(level)
			if err != nil {
				return err
			}
			logger = logger.With(slog.String("app", "bank-simulator"))

			router := chi.NewRouter()
			router.Use(middleware.NewStructuredLogger(logger))
			banksim.New(logger).AppendRoutes(router)

			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("bank simulator started", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("bank simulator: %w", err)
			}
			logger.Info("bank simulator stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "localhost:8080", "Address the simulator listens on")

	return cmd
}
