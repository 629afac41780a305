package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/ak652231/TraceQ-sub001/internal/dispatch"
	"github.com/ak652231/TraceQ-sub001/internal/identity"
	"github.com/ak652231/TraceQ-sub001/internal/platform/config"
	"github.com/ak652231/TraceQ-sub001/internal/platform/httpserver"
	"github.com/ak652231/TraceQ-sub001/internal/platform/kafka"
	"github.com/ak652231/TraceQ-sub001/internal/platform/logger"
	"github.com/ak652231/TraceQ-sub001/internal/platform/metrics"
	"github.com/ak652231/TraceQ-sub001/internal/platform/postgres"
	redisplatform "github.com/ak652231/TraceQ-sub001/internal/platform/redis"
	sightingHandler "github.com/ak652231/TraceQ-sub001/internal/sighting/handler"
	sightingMetrics "github.com/ak652231/TraceQ-sub001/internal/sighting/metrics"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/outbox"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/seed"
	sightingService "github.com/ak652231/TraceQ-sub001/internal/sighting/service"
	sightingStore "github.com/ak652231/TraceQ-sub001/internal/sighting/store"
	"github.com/ak652231/TraceQ-sub001/internal/sighting/workflow"
	httptransport "github.com/ak652231/TraceQ-sub001/internal/transport/http"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/audit/relay"
	"github.com/ak652231/TraceQ-sub001/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// store is everything the server needs from a sighting store backend.
type store interface {
	workflow.TxRunner
	sightingService.Store
	seed.Store
	outbox.EventStore
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	st, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	if cfg.SeedFile != "" {
		f, err := seed.Load(ctx, cfg.SeedFile, st)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "seed applied", "users", len(f.Users), "police", len(f.Police))
	}

	rdb, err := redisplatform.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	dispatchMetrics := dispatch.NewMetrics()
	hub := dispatch.NewHub(dispatch.WithLogger(log), dispatch.WithMetrics(dispatchMetrics))
	var dispatcher sightingService.Dispatcher = hub
	var revocations *identity.Revocations
	if rdb != nil {
		bridge := dispatch.NewBridge(rdb.Client, hub,
			dispatch.WithChannel(cfg.Redis.Channel),
			dispatch.WithBreaker(circuit.New("redis-live")),
			dispatch.WithBridgeLogger(log),
			dispatch.WithBridgeMetrics(dispatchMetrics),
		)
		dispatcher = bridge
		revocations = identity.NewRevocations(rdb.Client)
		g.Go(func() error { return bridge.Run(gctx) })
	} else {
		log.InfoContext(ctx, "redis not configured; live fan-out is local and logout is unavailable")
	}

	engine := workflow.New(st,
		workflow.WithLogger(log),
		workflow.WithTracer(otel.Tracer("traceq")),
	)
	svc := sightingService.New(engine, st,
		sightingService.WithLogger(log),
		sightingService.WithMetrics(sightingMetrics.New()),
		sightingService.WithDispatcher(dispatcher),
		sightingService.WithDispatchTimeout(cfg.DispatchTimeout),
	)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return err
		}
		outboxRelay := relay.New(outbox.New(st), producer,
			relay.WithInterval(cfg.Kafka.PollInterval),
			relay.WithBatchSize(cfg.Kafka.BatchSize),
			relay.WithLogger(log),
			relay.WithMetrics(relay.NewMetrics(prometheus.DefaultRegisterer)),
		)
		g.Go(func() error { return outboxRelay.Run(gctx) })
	} else {
		log.InfoContext(ctx, "kafka not configured; report events stay in the outbox")
	}

	tokens := identity.NewTokens(cfg.JWT.SigningKey, cfg.JWT.Issuer)
	var revoker identity.Revoker
	var checker identity.RevocationChecker
	if revocations != nil {
		revoker = revocations
		checker = revocations
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:  log,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Auth:    identity.RequireAuth(tokens, checker, log),
		API: []httptransport.Registrar{
			sightingHandler.New(svc, log),
			identity.NewHandler(revoker, log),
		},
		Live: []httptransport.Registrar{
			dispatch.NewHandler(hub, log, originChecker(cfg.AllowedOrigins)),
		},
		Health: func(r *http.Request) error {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					return err
				}
			}
			if rdb != nil {
				return rdb.Health(r.Context())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.InfoContext(gctx, "starting traceq", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		log.InfoContext(ctx, "using in-memory store")
		return sightingStore.NewInMemory(cfg.StoreTimeout), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := sightingStore.NewPostgres(db, cfg.StoreTimeout)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.InfoContext(ctx, "using postgres store")
	return pg, db, nil
}

// originChecker allows the listed origins. An empty list keeps the
// same-origin default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
