package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/client"
	"github.com/totegamma/ethsign/internal/config"
	"github.com/totegamma/ethsign/internal/infra/database"
	"github.com/totegamma/ethsign/internal/infra/gateway"
	"github.com/totegamma/ethsign/internal/infra/lock"
	"github.com/totegamma/ethsign/internal/infra/memory"
	"github.com/totegamma/ethsign/internal/infra/repository"
	"github.com/totegamma/ethsign/internal/present/rest"
	authmw "github.com/totegamma/ethsign/internal/present/rest/middleware"
	"github.com/totegamma/ethsign/internal/service"
	"github.com/totegamma/ethsign/internal/usecase"
)

type repositories struct {
	schemas      usecase.SchemaRepository
	attestations usecase.AttestationRepository
	signatures   usecase.SignatureRepository
}

type eventBus interface {
	usecase.EventSink
	rest.EventStream
}

func setupLogger(cfg config.Server) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func setupTracer(ctx context.Context, cfg config.Server) (func(context.Context) error, error) {
	if !cfg.EnableTrace {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(cfg.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func setupRepositories(cfg config.Server) (repositories, error) {
	if cfg.PostgresDsn == "" {
		slog.Warn("postgresDsn is empty, using the in-memory store", slog.String("module", "main"))
		store := memory.NewStore()
		return repositories{
			schemas:      memory.NewSchemaRepository(store),
			attestations: memory.NewAttestationRepository(store),
			signatures:   memory.NewSignatureRepository(store),
		}, nil
	}

	db, err := database.NewPostgres(cfg.PostgresDsn)
	if err != nil {
		return repositories{}, err
	}
	err = database.MigratePostgres(db)
	if err != nil {
		return repositories{}, err
	}

	mc := database.NewMemcached(cfg.MemcachedAddr)
	return repositories{
		schemas:      repository.NewSchemaRepository(db, mc),
		attestations: repository.NewAttestationRepository(db),
		signatures:   repository.NewSignatureRepository(db),
	}, nil
}

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	setupLogger(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := setupTracer(ctx, cfg.Server)
	if err != nil {
		slog.Error("failed to setup tracer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repos, err := setupRepositories(cfg.Server)
	if err != nil {
		slog.Error("failed to setup storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var locker usecase.Locker = lock.NewLocal()
	var events eventBus = service.NewLocalSignalService()
	if cfg.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
		if err != nil {
			slog.Error("failed to connect redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rdb.Close()

		events = service.NewSignalService(rdb, cfg.Server.EventChannel)
		if cfg.Engine.LockBackend == "redis" {
			locker = lock.NewRedis(rdb, time.Duration(cfg.Engine.LockTTL))
		}
	} else if cfg.Engine.LockBackend == "redis" {
		slog.Error("lockBackend redis requires server.redisAddr")
		os.Exit(1)
	}

	var issuer usecase.TokenIssuer
	if cfg.TokenIssuer.Endpoint != "" {
		issuer = gateway.NewTokenGateway(client.New(cfg.TokenIssuer.Endpoint, time.Duration(cfg.TokenIssuer.Timeout)))
	} else {
		slog.Warn("tokenIssuer.endpoint is empty, tokens are only logged", slog.String("module", "main"))
		issuer = gateway.NewLocalTokenIssuer()
	}

	engineConfig := cfg.Domain()
	verifier := ethsign.NewVerifier()
	clock := usecase.SystemClock{}

	policyUsecase := usecase.NewPolicyUsecase(repos.attestations)
	schemaUsecase := usecase.NewSchemaUsecase(repos.schemas, verifier, issuer, clock, events)
	attestationUsecase := usecase.NewAttestationUsecase(repos.attestations, repos.schemas, verifier, issuer, clock, events, engineConfig)
	signatureUsecase := usecase.NewSignatureUsecase(repos.signatures, repos.attestations, repos.schemas, policyUsecase, verifier, issuer, clock, events, locker, engineConfig)
	revocationUsecase := usecase.NewRevocationUsecase(repos.attestations, repos.schemas, verifier, issuer, clock, events, locker, engineConfig)

	authService := service.NewAuthService(engineConfig)
	authMiddleware := authmw.NewAuthMiddleware(authService, engineConfig)

	handler := rest.NewHandler(
		engineConfig,
		schemaUsecase,
		attestationUsecase,
		signatureUsecase,
		revocationUsecase,
		policyUsecase,
		events,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("ethsign"))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(authMiddleware.IdentifyIdentity)
	handler.RegisterRoutes(e)

	go func() {
		slog.Info("listening", slog.String("addr", cfg.Server.Listen), slog.String("holding", engineConfig.HoldingAddress.Hex()))
		if err := e.Start(cfg.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Error("failed to shutdown tracer", slog.String("error", err.Error()))
	}
}
