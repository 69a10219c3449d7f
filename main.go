package main

import (
	"context"
	"embed"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"slotswap/core"
	"slotswap/pkg/auth"
	"slotswap/pkg/resources"
	"slotswap/pkg/servers"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	name, version := "slotswap", "1.0"

	// 1. Config
	_ = godotenv.Load()
	resources.LoadConfig()

	// 2. Logger
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().
		Str("service", name).Str("version", version).Logger()
	ctx := log.Logger.WithContext(context.Background())

	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		shutdownLogger.Fatal().Msg("JWT_SECRET is required")
	}

	// 3. Telemetry (traces/metrics/logs) + zerolog -> OTel bridge
	stopTelemetryFn, err := resources.CreateTelemetry(ctx, name, version)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to setup otel telemetry")
	}
	defer stopTelemetryFn(ctx, 15*time.Second)

	log.Logger = log.Logger.Hook(resources.NewZerologHook(name))
	ctx = log.Logger.WithContext(ctx)

	// 4. Database
	pool, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to create database connection pool")
	}

	err = resources.RunMigrations(migrations, "migrations")
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg("unable to migrate database schema")
	}

	// 5. Wiring
	issuer := auth.NewTokenIssuer(secret, viper.GetDuration("JWT_TTL"))
	repo := core.NewRepository(pool)
	service := core.NewSwapService(repo)
	authService := core.NewAuthService(repo, issuer)
	handlers := core.NewHandlers(service, authService)

	// 6. Routing

	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.New()
	restHandler.Use(gin.Recovery())
	restHandler.Use(otelgin.Middleware(name))
	restHandler.Use(resources.NewHTTPMetrics(name).Middleware())

	api := restHandler.Group("/api")
	api.POST("/auth/signup", handlers.PostSignup)
	api.POST("/auth/login", handlers.PostLogin)

	protected := api.Group("", auth.Middleware(issuer))
	protected.GET("/events", handlers.GetEvents)
	protected.POST("/events", handlers.PostEvents)
	protected.GET("/events/:id", handlers.GetEventsById)
	protected.PUT("/events/:id", handlers.PutEvents)
	protected.DELETE("/events/:id", handlers.DeleteEvents)
	protected.POST("/events/:id/offer", handlers.PostEventsOffer)
	protected.GET("/swaps/swappable-slots", handlers.GetSwappableSlots)
	protected.GET("/swaps/requests", handlers.GetSwapRequests)
	protected.POST("/swaps/swap-request", handlers.PostSwapRequests)
	protected.POST("/swaps/swap-response/:requestId", handlers.PostSwapResponses)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 7. Lifecycle

	app := lifecycle.NewApp(
		lifecycle.WithName(name),
		lifecycle.WithVersion(version),
		lifecycle.WithSignal(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT),
	)

	app.Attach(servers.BuildBaseServer(pool))
	app.Attach(servers.BuildHttpServer("debug-server", &http.Server{
		Addr:              net.JoinHostPort(viper.GetString("HTTP_HOST"), viper.GetString("DEBUG_PORT")),
		Handler:           debugHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}))
	app.Attach(servers.BuildHttpServer("rest-server", &http.Server{
		Addr:              net.JoinHostPort(viper.GetString("HTTP_HOST"), viper.GetString("HTTP_PORT")),
		Handler:           restHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}))

	startupLogger.Info().Msg("application running")

	err = app.Run()
	if err != nil {
		shutdownLogger.Error().Err(err).Msg("runtime error")
	}
}
