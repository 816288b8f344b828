package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/bidroom/internal/admin"
	"github.com/sudo-init-do/bidroom/internal/alerts"
	"github.com/sudo-init-do/bidroom/internal/config"
	"github.com/sudo-init-do/bidroom/internal/conversation"
	"github.com/sudo-init-do/bidroom/internal/db"
	"github.com/sudo-init-do/bidroom/internal/messaging"
	appmw "github.com/sudo-init-do/bidroom/internal/middleware"
	"github.com/sudo-init-do/bidroom/internal/models"
	"github.com/sudo-init-do/bidroom/internal/negotiation"
	"github.com/sudo-init-do/bidroom/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Init subsystems
	gw, err := db.Connect(ctx, db.Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.MaxConns,
		Retries:        cfg.ConnectRetries,
		Backoff:        cfg.ConnectBackoff,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		slog.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	if err := gw.EnsureSchema(ctx); err != nil {
		slog.Error("schema bootstrap failed", "error", err)
		gw.Close()
		os.Exit(1)
	}

	states := conversation.NewStore()
	registry := user.NewRegistry(gw, cfg.AdminIDs)
	registry.OnRoleChange(func(_ context.Context, id int64, from, to models.Role) {
		// Whatever the user was typing belongs to the old role.
		states.Clear(id)
		slog.Info("conversation state discarded after role change", "user_id", id, "from", from, "to", to)
	})
	if err := registry.SeedAdmins(ctx); err != nil {
		slog.Error("admin seeding failed", "error", err)
		gw.Close()
		os.Exit(1)
	}

	hub := messaging.NewHub()
	var sender alerts.Sender = hub
	var (
		queue  *alerts.Queue
		worker *alerts.Worker
	)
	if cfg.RedisAddr != "" {
		queue = alerts.NewQueue(cfg.RedisAddr)
		worker = alerts.NewWorker(cfg.RedisAddr, hub, 5)
		if err := worker.Start(); err != nil {
			slog.Error("delivery worker failed", "error", err)
			gw.Close()
			os.Exit(1)
		}
		sender = queue
		slog.Info("queued delivery enabled", "redis", cfg.RedisAddr)
	}

	engine := negotiation.New(gw, registry, cfg.PageSize)
	dispatcher := alerts.NewDispatcher(sender, registry)
	router := conversation.NewRouter(states, engine, registry, dispatcher)
	adminHandler := admin.NewHandler(registry, gw)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := gw.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Transport
	auth := appmw.JWTMiddleware(cfg.JWTSecret)
	e.POST("/events", messaging.PostEvent(router), auth)
	e.GET("/ws", hub.ServeWS, auth)
	e.GET("/me", registry.Me, auth)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(auth)
	adminGroup.Use(appmw.AdminGuard(registry))
	adminGroup.GET("/users", adminHandler.ListUsers)
	adminGroup.POST("/users/:id/role", adminHandler.SetRole)
	adminGroup.GET("/stats", adminHandler.Stats)

	go func() {
		slog.Info("API server listening", "port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// signal.Notify requires the channel to be buffered
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if queue != nil {
		_ = queue.Close()
	}
	gw.Close()
}
