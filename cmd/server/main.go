package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/trackwise/trackwise/internal/api"
	"github.com/trackwise/trackwise/internal/api/gate"
	"github.com/trackwise/trackwise/internal/api/handler"
	"github.com/trackwise/trackwise/internal/api/middleware"
	"github.com/trackwise/trackwise/internal/auth"
	"github.com/trackwise/trackwise/internal/config"
	"github.com/trackwise/trackwise/internal/database"
	"github.com/trackwise/trackwise/internal/metrics"
	"github.com/trackwise/trackwise/internal/notify"
	"github.com/trackwise/trackwise/internal/project"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.ApplySchema(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable at startup; sessions and events are unavailable until it recovers", "addr", cfg.RedisAddr, "error", err)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	catalog, err := rbac.DefaultCatalog()
	if err != nil {
		return err
	}
	roles := rbac.NewStore(db.Pool())
	if _, err := rbac.Seed(ctx, roles, catalog); err != nil {
		return err
	}

	userRepo := auth.NewRepository(db.Pool())
	authService := auth.NewService(userRepo, cfg.BcryptCost)
	if err := bootstrapAdmin(ctx, authService, roles, cfg.BootstrapAdminEmail); err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var tokenUsers auth.UserRepository
	if cfg.TokenCheckUser {
		tokenUsers = userRepo
	}
	resolver := auth.NewResolver(
		session.Strategy{},
		auth.NewBearerStrategy(tokens, tokenUsers),
		auth.NewAPIKeyStrategy(authService),
	)

	projects := project.NewRepository(db.Pool())
	guard := project.NewGuard(projects, project.DenyInactiveMembers(cfg.ScopeDenyInactiveMembers))

	router, err := api.NewRouter(api.RouterDeps{
		DBPinger:       db,
		CachePinger:    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Version:        cfg.Version,
		Chain:          gate.NewChain(resolver, guard, roles),
		Sessions:       session.NewManager(session.NewRedisStore(rdb), cfg.SessionCookie, cfg.SessionTTL, cfg.SessionSecure),
		AuthService:    authService,
		Tokens:         tokens,
		Roles:          roles,
		Catalog:        catalog,
		Projects:       projects,
		Publisher:      notify.NewRedisPublisher(rdb),
		LoginLimiter:   middleware.NewRateLimiter(cfg.LoginRatePerSecond, cfg.LoginRateBurst),
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting trackwise server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// bootstrapAdmin creates the first user on an empty database and grants it
// the global Admin role.
func bootstrapAdmin(ctx context.Context, svc *auth.Service, roles rbac.Store, email string) error {
	u, _, err := svc.BootstrapAdmin(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}

	admin, err := roles.GetRoleByName(ctx, rbac.RoleAdmin)
	if err != nil {
		return fmt.Errorf("looking up admin role: %w", err)
	}
	return roles.AssignGlobalRole(ctx, u.ID, admin.ID)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}
