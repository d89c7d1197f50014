// Package main initializes and starts the to-do API server, setting up
// configuration, logging, database connections, repositories, services,
// handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/todolist/internal/config"
	"github.com/atinyakov/todolist/internal/db"
	"github.com/atinyakov/todolist/internal/logger"
	"github.com/atinyakov/todolist/internal/password"
	"github.com/atinyakov/todolist/internal/repository"
	"github.com/atinyakov/todolist/internal/server/handler/http"
	"github.com/atinyakov/todolist/internal/service"
	"github.com/atinyakov/todolist/internal/session"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line, environment and file configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Error("server stopped", zap.Error(err))
		stop()
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

// run wires the stores, services and router and serves until ctx is done.
// Resources opened here are released before it returns.
func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	// Initialize the stores: PostgreSQL when configured, memory otherwise.
	var (
		userRepo service.UserRepository
		taskRepo service.TaskRepository
	)
	if options.DatabaseDSN != "" {
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		postgresDB, err := db.InitPostgres(initCtx, options.DatabaseDSN)
		cancel()
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer func() {
			if err := postgresDB.Close(); err != nil {
				zapLogger.Warn("closing database", zap.Error(err))
			}
		}()
		userRepo = repository.NewPostgresUserRepository(postgresDB)
		taskRepo = repository.NewPostgresTaskRepository(postgresDB)
	} else {
		zapLogger.Warn("no database configured, using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		userRepo, taskRepo = mem, mem
	}

	hasher := password.NewBcrypt(bcrypt.DefaultCost)
	sessions := session.NewManager([]byte(options.JWTSecret), options.TokenTTL, options.Production)

	// Initialize business-logic services.
	authService, err := service.NewAuthService(userRepo, hasher, sessions)
	if err != nil {
		return fmt.Errorf("init auth service: %w", err)
	}
	userService := service.NewUserService(userRepo, hasher, sessions)
	todoService := service.NewTodoService(taskRepo)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService, Sessions: sessions, Log: zapLogger}
	todoHandler := &http.TodoHandler{TodoService: todoService, Log: zapLogger}
	userHandler := &http.UserHandler{UserService: userService, Sessions: sessions, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, todoHandler, userHandler, sessions, http.RouterOptions{
		ClientOrigin:   options.ClientOrigin,
		AuthRateLimit:  options.AuthRateLimit,
		AuthRateWindow: options.AuthRateWindow,
	}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if options.TLSCertFile != "" {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	zapLogger.Info("server configured", zap.Bool("production", options.Production))
	return serve(ctx, server, options.TLSCertFile, options.TLSKeyFile, zapLogger)
}

// serve runs server until it fails or ctx is done, then shuts it down
// gracefully. TLS is used when certFile is set.
func serve(ctx context.Context, server *nethttp.Server, certFile, keyFile string, zapLogger *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server",
			zap.String("addr", server.Addr),
			zap.Bool("tls", certFile != ""),
		)
		if certFile != "" {
			serveErr <- server.ListenAndServeTLS(certFile, keyFile)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	}
}
