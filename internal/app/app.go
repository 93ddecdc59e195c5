package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ldap-admin/internal/config"
	"ldap-admin/internal/database"
	"ldap-admin/internal/directory"
	"ldap-admin/internal/event"
	"ldap-admin/internal/handler"
	"ldap-admin/internal/middleware"
	"ldap-admin/internal/repository"
	"ldap-admin/internal/router"
	"ldap-admin/internal/service"
	"ldap-admin/internal/websocket"
)

const Version = "1.0.0"

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	handler.ExposeErrorDetails(cfg.IsDevelopment())

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	dirClient, err := directory.NewClient(directory.Config{
		URL:                cfg.LDAPURL,
		BaseDN:             cfg.LDAPBaseDN,
		BindDN:             cfg.LDAPAdminDN,
		BindPassword:       cfg.LDAPAdminPassword,
		ConnectTimeout:     cfg.LDAPConnectTimeout,
		OperationTimeout:   cfg.LDAPOperationTimeout,
		PagingSize:         uint32(cfg.LDAPPagingSize),
		StartTLS:           cfg.LDAPStartTLS,
		InsecureSkipVerify: cfg.LDAPInsecureSkipVerify,
	}, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize directory client: %w", err)
	}
	slog.Info("directory configured", "url", dirClient.URL(), "base_dn", dirClient.BaseDN())

	bus := event.NewBus()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(bus)
	go hub.Run(hubCtx)

	paginator := service.NewPaginator(cfg.DefaultPageSize, cfg.MaxPageSize)
	activityService := service.NewActivityService(repository.NewActivityRepository(db.Pool), bus, paginator)

	authService, err := service.NewAuthService(dirClient, activityService, service.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		TokenTTL:     cfg.JWTTTL,
		AdminGroupDN: cfg.LDAPAdminGroupDN,
		LoginFilters: cfg.LoginFilters,
	})
	if err != nil {
		hubCancel()
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	prober := service.NewChildProber(dirClient, cfg.ProbeBatchSize)
	directoryService, err := service.NewDirectoryService(dirClient, prober, paginator, activityService, service.DirectoryConfig{
		PasswordHash: cfg.UserPasswordHash,
	})
	if err != nil {
		hubCancel()
		db.Close()
		return nil, fmt.Errorf("failed to initialize directory service: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Health:   handler.NewHealthHandler(db, dirClient, Version),
		Auth:     handler.NewAuthHandler(authService),
		LDAP:     handler.NewLDAPHandler(directoryService),
		User:     handler.NewUserHandler(directoryService),
		Group:    handler.NewGroupHandler(directoryService),
		OU:       handler.NewOUHandler(directoryService),
		Stats:    handler.NewStatsHandler(directoryService),
		Logs:     handler.NewLogsHandler(activityService),
		Activity: handler.NewActivityStreamHandler(hub),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			// Pending activity writes still need the pool.
			activityService.Close,
			bus.Close,
			hubCancel,
			db.Close,
		},
	}, nil
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and releases
// the hub, the event bus and the database pool.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown requested")
	case err := <-serveErr:
		runErr = fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if runErr == nil {
		slog.Info("server stopped")
	}
	return runErr
}
