package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/example/venue-scheduler/internal/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	a, err := bootstrap(ctx, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Error("failed to close resources", "error", cerr)
		}
	}()

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn("redis unreachable at startup", "addr", a.cfg.Redis.Addr, "error", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           newHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	a.logger.Info("venue scheduler API listening",
		"addr", server.Addr,
		"storage", a.describeStorage(),
		"notify_transport", a.cfg.NotifyTransport,
		"timezone", a.cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	a.logger.Info("venue scheduler API stopped")
	return nil
}

func newHandler(a *app) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Availability: httptransport.NewAvailabilityHandler(a.availability(), a.logger),
		TechCapacity: httptransport.NewTechCapacityHandler(a.techCapacity(), a.logger),
		Conflicts:    httptransport.NewConflictHandler(a.priorityConflicts(), a.logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			httptransport.ActorFromHeader(),
		},
	})
}
