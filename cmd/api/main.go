package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/propledger/internal/api"
	"github.com/fastprodman/propledger/internal/auth"
	"github.com/fastprodman/propledger/internal/infra/cache"
	"github.com/fastprodman/propledger/internal/infra/logging"
	"github.com/fastprodman/propledger/internal/infra/metrics"
	"github.com/fastprodman/propledger/internal/infra/pgutils"
	pgledger "github.com/fastprodman/propledger/internal/repos/ledger/postgres"
	"github.com/fastprodman/propledger/internal/services/purchase"
	"github.com/fastprodman/propledger/pkg/envconf"
	"github.com/fastprodman/propledger/pkg/shutdownqueue"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

//nolint:funlen
func run(ctx context.Context) (retErr error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := new(apiConfig)

	err = envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel)
	shutdown := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdown.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdown.AddCloser("postgres", db.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewDBStatsCollector(db, "ledger"))

	m := metrics.New(reg)

	opts := []purchase.Option{purchase.WithLogger(logger), purchase.WithRecorder(m)}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		shutdown.AddCloser("redis", rdb.Close)

		opts = append(opts, purchase.WithCache(cache.NewPropertyCache(rdb, cfg.Redis.TTL)))
	}

	svc, err := purchase.New(pgledger.New(db), purchase.ConfigFrom(cfg.Purchase), opts...)
	if err != nil {
		return fmt.Errorf("init purchase service: %w", err)
	}

	verifier, err := auth.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("init verifier: %w", err)
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.Deps{
		Service:     svc,
		Verifier:    verifier,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	shutdown.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
