package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pulse/pulse-api/internal/config"
	"github.com/pulse/pulse-api/internal/domain/graph"
	"github.com/pulse/pulse-api/internal/domain/identity"
	"github.com/pulse/pulse-api/internal/domain/interaction"
	"github.com/pulse/pulse-api/internal/domain/notification"
	"github.com/pulse/pulse-api/internal/domain/realtime"
	"github.com/pulse/pulse-api/internal/domain/saved"
	"github.com/pulse/pulse-api/internal/middleware"
	"github.com/pulse/pulse-api/internal/pkg/database"
	"github.com/pulse/pulse-api/internal/pkg/eventbus"
	"github.com/pulse/pulse-api/internal/pkg/jwt"
	"github.com/pulse/pulse-api/internal/pkg/logger"
	pkgresponse "github.com/pulse/pulse-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.Env)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Pulse API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Repositories ----------
	identityRepo := identity.NewRepository(db)
	graphRepo := graph.NewRepository(db)
	savedRepo := saved.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- Realtime gateway ----------
	gateway := realtime.NewGateway(redisClient)
	go gateway.Run()
	defer gateway.Shutdown()

	// ---------- Services ----------
	notificationService := notification.NewService(
		notificationRepo,
		identityRepo,
		notification.NewWSPublisher(gateway),
		cfg.MergeWindow,
	)

	bus := eventbus.New(cfg.EventBusBuffer, notificationService)
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	go bus.Run(busCtx)

	graphService := graph.NewService(graphRepo, bus, savedRepo)
	identityService := identity.NewService(identityRepo)
	identityService.SetPrivacyRelaxHook(graphService)
	interactionService := interaction.NewService(graphService, bus)

	cleanup := notification.NewCleanup(notificationRepo, cfg.CleanupInterval,
		time.Duration(cfg.RetentionDays)*24*time.Hour)
	go cleanup.Run(busCtx)

	// ---------- Handlers ----------
	identityHandler := identity.NewHandler(identityService)
	graphHandler := graph.NewHandler(graphService, identityRepo)
	savedHandler := saved.NewHandler(savedRepo)
	notificationHandler := notification.NewHandler(notificationService)
	interactionHandler := interaction.NewHandler(interactionService)
	realtimeHandler := realtime.NewHandler(gateway, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress; token may arrive as a query
	// param since browsers cannot set headers on WS connects)
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		token := req.URL.Query().Get("token")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(realtimeHandler.WebSocket)).ServeHTTP(w, req)
	})

	// Everything except the WebSocket endpoint is compressible
	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			pkgresponse.OK(w, map[string]string{
				"status":  "ok",
				"version": "1.0.0",
			})
		})
		r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				r.Use(authMiddleware)
				identityHandler.UserRoutes(r)
				graphHandler.UserRoutes(r)
			})

			r.Mount("/follow-requests", graphHandler.RequestRoutes(authMiddleware))
			r.Mount("/saved", savedHandler.Routes(authMiddleware))
			r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
			r.Mount("/internal/events", interactionHandler.Routes(authMiddleware))
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
