/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the slot booking server. Loads configuration,
  wires the store, service, token issuer and router, and shuts down
  gracefully.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (TOML file, .env, SLOT_* environment)
  3. Open the SQLite store and migrate the schema
  4. Build the booking service and bootstrap the admin account
  5. Configure the HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML configuration file (optional)
  -port    HTTP server port, overrides the configuration
  -db      SQLite database path, overrides the configuration
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  # Run with a config file
  ./server -config=./slots.toml

  # Throwaway dev instance with scenarios enabled
  SLOT_DEV_MODE=true SLOT_JWT_SECRET=dev SLOT_ADMIN_USERNAME=admin \
    SLOT_ADMIN_PASSWORD=changeme ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Every setting and its environment variable
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/slot-engine/api"
	"github.com/warp/slot-engine/auth"
	"github.com/warp/slot-engine/booking"
	"github.com/warp/slot-engine/config"
	"github.com/warp/slot-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "TOML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	tokens, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:         cfg.Auth.JWTSecret,
		PrivateKeyPath: cfg.Auth.PrivateKeyPath,
		PublicKeyPath:  cfg.Auth.PublicKeyPath,
		TTL:            cfg.TokenTTL(),
	})
	if err != nil {
		return fmt.Errorf("initialize token issuer: %w", err)
	}

	svc := booking.NewService(store, cfg.Policy(),
		booking.WithLogger(logger),
		booking.WithPasswordHasher(auth.BcryptHasher{}),
	)

	if cfg.Admin.Enabled() {
		created, err := svc.EnsureAdmin(context.Background(), booking.CreateUserInput{
			Username: cfg.Admin.Username,
			Email:    cfg.Admin.Email,
			Password: cfg.Admin.Password,
		})
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("admin account created", "username", cfg.Admin.Username)
		}
	}

	router := api.NewRouter(api.NewHandler(svc, tokens, store), api.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		DevMode:        cfg.DevMode,
		LoginPerSecond: cfg.RateLimit.LoginPerSecond,
		LoginBurst:     cfg.RateLimit.LoginBurst,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "db", cfg.Database.Path, "dev_mode", cfg.DevMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
