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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"biovault/internal/biometric/cipher"
	"biovault/internal/biometric/handler"
	"biovault/internal/biometric/matching"
	biometricmetrics "biovault/internal/biometric/metrics"
	"biovault/internal/biometric/modality"
	"biovault/internal/biometric/models"
	"biovault/internal/biometric/service"
	"biovault/internal/biometric/store"
	jwttoken "biovault/internal/jwt_token"
	"biovault/internal/platform/config"
	"biovault/internal/platform/httpserver"
	"biovault/internal/platform/logger"
	platformmetrics "biovault/internal/platform/metrics"
	redisclient "biovault/internal/platform/redis"
	audit "biovault/pkg/platform/audit"
	"biovault/pkg/platform/audit/publisher"
	auditkafka "biovault/pkg/platform/audit/store/kafka"
	auditmemory "biovault/pkg/platform/audit/store/memory"
	auditpostgres "biovault/pkg/platform/audit/store/postgres"
	txcontext "biovault/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("biovault stopped with error", "error", err)
		os.Exit(1)
	}
}

// resources tracks connections that must be closed on shutdown.
type resources struct {
	db     *sql.DB
	redis  *redisclient.Client
	kafka  *kgo.Client
	checks []func(context.Context) error
}

func (r *resources) close() {
	if r.kafka != nil {
		r.kafka.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	res := &resources{}
	defer res.close()

	templates, err := openTemplateStore(ctx, cfg, res)
	if err != nil {
		return err
	}
	auditStore, err := openAuditStore(ctx, cfg, res)
	if err != nil {
		return err
	}

	var txRunner txcontext.Runner = txcontext.Noop{}
	if cfg.Store.Backend == config.BackendPostgres && cfg.Audit.Backend == config.BackendPostgres {
		// Template writes and their audit entries commit together.
		txRunner = txcontext.NewSQLRunner(res.db)
	}

	templateCipher, err := cipher.New([]byte(cfg.Biometric.EncryptionKey))
	if err != nil {
		return fmt.Errorf("init template cipher: %w", err)
	}

	biometricMetrics := biometricmetrics.New(prometheus.DefaultRegisterer)
	httpMetrics := platformmetrics.NewHTTP(prometheus.DefaultRegisterer)

	auditor := publisher.NewPublisher(auditStore,
		publisher.WithLogger(log),
		publisher.WithMetrics(biometricMetrics),
	)

	thresholds := make(map[models.Modality]float64, len(cfg.Biometric.Thresholds))
	for t, v := range cfg.Biometric.Thresholds {
		thresholds[models.Modality(t)] = v
	}
	svc := service.New(
		templates,
		modality.DefaultRegistry(),
		templateCipher,
		matching.NewCharacterMatcher(),
		auditor,
		service.WithLogger(log),
		service.WithMetrics(biometricMetrics),
		service.WithTxRunner(txRunner),
		service.WithConfig(service.Config{
			MinConfidence:      cfg.Biometric.MinConfidence,
			Thresholds:         thresholds,
			ScoringConcurrency: cfg.Biometric.ScoringConcurrency,
		}),
	)

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)

	router := chi.NewRouter()
	router.Get("/healthz", healthHandler(res.checks))
	handler.New(svc, log, httpMetrics, jwttoken.NewJWTServiceAdapter(jwt)).Register(router)

	metricsRouter := http.NewServeMux()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	servers := []*http.Server{
		httpserver.New(cfg.Server.Addr, router),
		httpserver.New(cfg.Server.MetricsAddr, metricsRouter),
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	log.Info("biovault started",
		"store_backend", cfg.Store.Backend,
		"audit_backend", cfg.Audit.Backend,
	)
	return g.Wait()
}

func openDB(ctx context.Context, cfg config.Config, res *resources) (*sql.DB, error) {
	if res.db != nil {
		return res.db, nil
	}
	db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	res.db = db
	res.checks = append(res.checks, db.PingContext)
	return db, nil
}

func openTemplateStore(ctx context.Context, cfg config.Config, res *resources) (service.TemplateStore, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := openDB(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		s := store.NewPostgres(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate template store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		res.redis = client
		res.checks = append(res.checks, client.Health)
		return store.NewRedis(client.Client), nil
	default:
		return store.NewInMemory(), nil
	}
}

func openAuditStore(ctx context.Context, cfg config.Config, res *resources) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case config.BackendPostgres:
		db, err := openDB(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		s := auditpostgres.New(db)
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate audit store: %w", err)
		}
		return s, nil
	case config.BackendKafka:
		client, err := auditkafka.NewClient(cfg.Audit.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		res.kafka = client
		res.checks = append(res.checks, client.Ping)
		s := auditkafka.New(client, auditkafka.WithTopic(cfg.Audit.KafkaTopic))
		if err := s.EnsureTopic(ctx, int32(cfg.Audit.KafkaPartitions), int16(cfg.Audit.KafkaReplication)); err != nil {
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		return s, nil
	default:
		return auditmemory.NewInMemoryStore(), nil
	}
}

func healthHandler(checks []func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
