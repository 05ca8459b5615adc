package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lightning-timesheet/config"
	httpHandler "lightning-timesheet/internal/adapter/http/handler"
	redisStorage "lightning-timesheet/internal/adapter/storage/redis"
	"lightning-timesheet/internal/core/ports"
	"lightning-timesheet/internal/service"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var openAPIPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and settlement engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, openAPIPath, log)
		},
	}

	cmd.Flags().StringVar(&openAPIPath, "openapi", "docs/api/openapi.yaml", "OpenAPI document served at /swagger/spec")
	return cmd
}

// runServer wires every component and blocks until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, openAPIPath string, log zerolog.Logger) error {
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("ledger", cfg.Ledger.Driver).
		Msg("Starting Lightning Timesheet")

	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	rdb, err := openRedis(ctx, cfg, log)
	if err != nil {
		return err
	}

	walletClient := newWalletClient(cfg, log)
	checkers := append([]ports.HealthChecker{walletClient}, st.Checkers...)

	var (
		guard          ports.SettlementGuard
		rateLimitStore *redisStorage.RateLimitStore
	)
	if rdb != nil {
		defer rdb.Close()
		guard = redisStorage.NewSettlementGuard(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	engine := service.NewSettlementService(
		walletClient,
		st.Ledger,
		guard,
		service.SystemClock{},
		cfg.Settlement,
		log,
	)
	// Deferred after the storage closers, so triggers stop before the ledger closes.
	defer engine.Shutdown()

	rate := engine.RateInfo()
	log.Info().
		Int64("hourly_rate", rate.HourlyRate).
		Dur("interval", rate.Interval).
		Int64("amount_per_interval", rate.AmountPerInterval).
		Msg("Settlement schedule")

	auditSvc := service.NewAuditService(st.Audit, log)
	defer auditSvc.Close()

	if specBytes, err := os.ReadFile(openAPIPath); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  engine,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           withCORS(router, cfg.CORS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
	return nil
}

// withCORS allows browser frontends listed in cors.allowed_origins.
func withCORS(h http.Handler, cfg config.CORSConfig) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID", "X-Request-ID"},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 300,
	})(h)
}
