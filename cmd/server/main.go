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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	jwttoken "eventreg/internal/jwt_token"
	"eventreg/internal/platform/config"
	"eventreg/internal/platform/httpserver"
	"eventreg/internal/platform/logger"
	"eventreg/internal/platform/metrics"
	"eventreg/internal/platform/postgres"
	platformredis "eventreg/internal/platform/redis"
	ratelimit "eventreg/internal/ratelimit/middleware"
	"eventreg/internal/ratelimit/store/bucket"
	"eventreg/internal/registration/events"
	"eventreg/internal/registration/handler"
	"eventreg/internal/registration/ports"
	"eventreg/internal/registration/service"
	memorystore "eventreg/internal/registration/store/memory"
	pgstore "eventreg/internal/registration/store/postgres"
	redisstore "eventreg/internal/registration/store/redis"
	httptransport "eventreg/internal/transport/http"
	"eventreg/pkg/platform/middleware/admin"
	"eventreg/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// infra is everything backend-specific main has to wire and release.
type infra struct {
	store   ports.Store
	buckets ratelimit.BucketStore
	closers []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	m := metrics.New(prometheus.DefaultRegisterer)

	deps, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer deps.close()

	checks := map[string]httptransport.Pinger{"store": deps.store}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		defer kp.Close()
		if err := kp.EnsureTopic(ctx); err != nil {
			log.Warn("kafka topic not ensured", "error", err, "topic", cfg.Events.Topic)
		}
		publisher = kp
		checks["events"] = kp
		log.Info("publishing registration events", "topic", cfg.Events.Topic, "brokers", cfg.Events.Brokers)
	}

	svc := service.New(deps.store,
		service.WithRunner(tx.NewRunner(
			tx.WithMaxAttempts(cfg.Store.MaxAttempts),
			tx.WithTimeout(cfg.Store.TxTimeout),
			tx.WithObserver(m.ObserveTxAttempt),
		)),
		service.WithPublisher(publisher),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithCounterKey(cfg.Store.CounterKey),
	)

	limiter := ratelimit.New(deps.buckets, cfg.Server.RateLimit, log,
		ratelimit.WithTrustedProxies(cfg.Server.TrustedProxies),
	)
	opts := []handler.Option{
		handler.WithCORSOrigin(cfg.Server.CORSOrigin),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		handler.WithSubmitMiddleware(limiter.RateLimit("registrations")),
	}
	if cfg.Server.AdminJWTSecret != "" {
		jwtService := jwttoken.NewJWTService(cfg.Server.AdminJWTSecret, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
		opts = append(opts, handler.WithReadMiddleware(
			admin.RequireAdmin(jwttoken.NewAdminValidatorAdapter(jwtService), log),
		))
		log.Info("report endpoints require an admin token")
	}

	router := httptransport.NewRouter(prometheus.DefaultGatherer, checks, handler.New(svc, log, m, opts...))
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting eventreg", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Store, log *slog.Logger) (*infra, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL, log); err != nil {
			return nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return &infra{
			store:   pgstore.New(pool, cfg.Collection),
			buckets: bucket.New(),
			closers: []func(){pool.Close},
		}, nil

	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &infra{
			store:   redisstore.New(client.Client, cfg.Collection),
			buckets: bucket.NewRedis(client.Client),
			closers: []func(){func() { _ = client.Close() }},
		}, nil

	default:
		log.Warn("using in-memory store; registrations are lost on restart")
		return &infra{
			store:   memorystore.New(),
			buckets: bucket.New(),
		}, nil
	}
}
