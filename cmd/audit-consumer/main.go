package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"biovault/internal/platform/config"
	"biovault/internal/platform/httpserver"
	"biovault/internal/platform/logger"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/audit/consumer"
	auditpostgres "biovault/pkg/platform/audit/store/postgres"
)

// main projects the Kafka audit topic into the PostgreSQL audit log.
func main() {
	cfg, err := config.ConsumerFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("audit consumer stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Consumer, log *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	store := auditpostgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	client, err := consumer.NewClient(cfg.KafkaBrokers, cfg.Group, cfg.KafkaTopic)
	if err != nil {
		return err
	}
	defer client.Close()

	alerts := promauto.With(prometheus.DefaultRegisterer).NewCounter(prometheus.CounterOpts{
		Name: "biovault_audit_validation_failure_alerts_total",
		Help: "Alerts raised for repeated failed biometric validations",
	})
	router := consumer.NewRouter(log, nil)
	router.Register(audit.CategoryCompliance, consumer.NewComplianceHandler(store, log))
	router.Register(audit.CategorySecurity, consumer.NewSecurityHandler(store, log,
		consumer.WithFailureThreshold(cfg.FailureThreshold, cfg.FailureWindow),
		consumer.WithAlertCounter(alerts),
	))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := httpserver.New(cfg.MetricsAddr, mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consuming audit stream", "topic", cfg.KafkaTopic, "group", cfg.Group)
		return consumer.New(client, router, log).Run(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
