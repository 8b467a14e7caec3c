package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/analytics"
	"github.com/stanfordssi/sats-inventory/internal/application/auth"
	"github.com/stanfordssi/sats-inventory/internal/application/build"
	"github.com/stanfordssi/sats-inventory/internal/application/inventory"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/bomimport"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/metrics"
	infrapdf "github.com/stanfordssi/sats-inventory/internal/infrastructure/pdf"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/postgres"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/qr"
	httpRouter "github.com/stanfordssi/sats-inventory/internal/interfaces/http"
	"github.com/stanfordssi/sats-inventory/pkg/config"
	"github.com/stanfordssi/sats-inventory/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("starting")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("apply migrations")
		}
	}

	repos := postgres.Bind(pool)
	txRunner := postgres.NewTxRunner(pool)

	var recorder ports.Metrics = ports.NopMetrics{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	authUC := auth.NewAuthUseCase(repos.Users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	partUC := usecase.NewPartUseCase(txRunner, repos.Parts, repos.Transactions)
	boardUC := usecase.NewBoardUseCase(txRunner, repos.Boards, repos.Parts, repos.Builds, bomimport.NewDecoder())
	userUC := usecase.NewUserUseCase(txRunner, repos.Users, log)
	labelUC := usecase.NewLabelUseCase(cfg.App.BaseURL, repos.Parts, boardUC, infrapdf.NewMarotoPDFGenerator(cfg.App.Name), qr.NewEncoder())
	ledgerUC := inventory.NewLedgerUseCase(txRunner, repos.Parts, repos.Transactions, repos.Users, recorder, log)
	replenishmentUC := inventory.NewReplenishmentUseCase(repos.Parts, repos.Boards)
	dashboardUC := analytics.NewDashboardUseCase(postgres.NewDashboardRepository(pool), repos.Transactions, repos.Builds)

	engine := build.NewEngine(txRunner, repos.Boards, repos.Users, repos.Builds, recorder, log, cfg.Build.Timeout)
	runner := build.NewRunner(engine, build.RetryPolicy{
		MaxRetries: cfg.Build.MaxRetries,
		Backoff:    cfg.Build.RetryBackoff,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 << 20,
		ErrorHandler: httpRouter.ErrorHandler,
	})
	httpRouter.Setup(app, httpRouter.MiddlewareConfig{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		RateLimit:   cfg.HTTP.RateLimit,
		Metrics:     cfg.Metrics.Enabled,
	}, log)

	// Swagger UI: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "SATS Inventory API",
		}))
	}

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:            authUC,
		PartUC:            partUC,
		BoardUC:           boardUC,
		UserUC:            userUC,
		LabelUC:           labelUC,
		LedgerUC:          ledgerUC,
		ReplenishmentUC:   replenishmentUC,
		DashboardUC:       dashboardUC,
		Builds:            runner,
		BuildQueries:      engine,
		DB:                pool,
		ServiceName:       cfg.App.Name,
		JWTSecret:         cfg.JWT.Secret,
		ProviderJWTSecret: cfg.JWT.ProviderSecret,
		MetricsEnabled:    cfg.Metrics.Enabled,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, closing server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("stopped")
}
