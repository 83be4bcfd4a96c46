package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	stridehttp "github.com/stride-ai/stride/internal/adapter/http"
	"github.com/stride-ai/stride/internal/adapter/litellm"
	"github.com/stride-ai/stride/internal/adapter/mcp"
	stridenats "github.com/stride-ai/stride/internal/adapter/nats"
	"github.com/stride-ai/stride/internal/adapter/natskv"
	strideotel "github.com/stride-ai/stride/internal/adapter/otel"
	"github.com/stride-ai/stride/internal/adapter/postgres"
	"github.com/stride-ai/stride/internal/adapter/ristretto"
	"github.com/stride-ai/stride/internal/adapter/tiered"
	"github.com/stride-ai/stride/internal/adapter/ws"
	"github.com/stride-ai/stride/internal/config"
	"github.com/stride-ai/stride/internal/logger"
	"github.com/stride-ai/stride/internal/middleware"
	"github.com/stride-ai/stride/internal/port/messagequeue"
	"github.com/stride-ai/stride/internal/resilience"
	"github.com/stride-ai/stride/internal/secrets"
	"github.com/stride-ai/stride/internal/service"

	"github.com/nats-io/nats.go/jetstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"tools_transport", cfg.Tools.Transport,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := strideotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := strideotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	store := postgres.NewStore(pool)

	// --- NATS + caches ---
	queue, err := stridenats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()

	l2, err := natskv.New(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("l2 cache: %w", err)
	}
	artifactCache := tiered.New(l1, l2, cfg.Cache.L2TTL)

	idemKV, err := queue.JetStream().CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: "stride-idempotency",
		TTL:    24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	// --- Oracle + tools ---
	vault, err := secrets.NewVault(secrets.EnvLoader(secrets.KeyOracleMasterKey))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	oracleClient := litellm.NewClient(cfg.Oracle)
	oracleClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
	oracleClient.SetCredentials(vault)

	runner, err := mcp.Connect(ctx, cfg.Tools)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	defer func() { _ = runner.Close() }()

	// --- Services ---
	hub := ws.NewHub()
	ledger := service.NewLedger(store, artifactCache, cfg.Cache.L2TTL)
	resolver := service.NewParameterResolver(oracleClient, cfg.Engine.PlaceholderPatterns,
		cfg.Engine.ExtractionMinConfidence, cfg.Engine.OracleTimeout)
	executor := service.NewStepExecutor(runner, oracleClient, resolver, cfg.Engine, metrics)
	checkpoint := service.NewCheckpointService(oracleClient, cfg.Engine.OracleTimeout, cfg.Engine.CheckpointMinSteps)
	engine := service.NewEngine(executor, checkpoint, ledger, queue, hub, metrics)
	router := service.NewRouter(cfg.Confidence)

	// --- HTTP ---
	handlers := &stridehttp.Handlers{
		Engine: engine,
		Ledger: ledger,
		Router: router,
		Hub:    hub,
		Tools:  runner,
		DBPing: pool.Ping,
	}

	r := chi.NewRouter()
	r.Use(stridehttp.CORS(cfg.Server.CORSOrigin))
	r.Use(stridehttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(stridehttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(strideotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.Idempotency(idemKV))

	stridehttp.MountRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // execute requests run plans synchronously
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	// Durable consumer on the lifecycle stream: runs stalled on operator
	// input or failed outright show up in the logs even when no WebSocket
	// client is watching.
	g.Go(func() error {
		stop, err := queue.Subscribe(gctx, "stride.>", attentionLogger())
		if err != nil {
			return fmt.Errorf("event subscriber: %w", err)
		}
		defer stop()
		<-gctx.Done()
		return nil
	})
	// SIGHUP rotates the oracle key without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if err := vault.Reload(); err != nil {
					slog.Warn("secret reload failed", "error", err)
					continue
				}
				slog.Info("secrets reloaded",
					"oracle_key", vault.Redacted(secrets.KeyOracleMasterKey))
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	return g.Wait()
}

// attentionLogger returns the handler for the engine's lifecycle stream.
// Events that need an operator land at warn level; everything else is
// left to the publishers' own logging.
func attentionLogger() messagequeue.Handler {
	return func(_ context.Context, subject string, data []byte) error {
		switch subject {
		case messagequeue.SubjectQuestionAsked:
			var q messagequeue.QuestionAskedPayload
			if err := json.Unmarshal(data, &q); err != nil {
				return fmt.Errorf("decode %s: %w", subject, err)
			}
			slog.Warn("plan awaiting operator answer",
				"request_id", q.RequestID,
				"question_id", q.QuestionID,
				"step_id", q.StepID,
				"priority", q.Priority,
			)
		case messagequeue.SubjectPlanFailed:
			var p messagequeue.PlanFinishedPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode %s: %w", subject, err)
			}
			slog.Warn("plan execution failed",
				"request_id", p.RequestID,
				"plan_id", p.PlanID,
				"execution_version", p.ExecutionVersion,
			)
		}
		return nil
	}
}
